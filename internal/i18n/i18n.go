// Package i18n renders the ledger and remittance texts in the preferred
// language of a person.
package i18n

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keyContributionInstruction = "Contribution %[1]s %[2]s %[3]s Questions? call %[4]s"
	keyTabInstruction          = "Personal tab %[1]s till %[2]s %[3]s Questions? call %[4]s"
	keyContributionRecognized  = "Contribution %[1]s (%[2]s/%[3]s)"
	keyContributionCollected   = "Direct withdrawal of contribution %[1]s"
	keyTabCollected            = "Direct withdrawal personal tab %[1]s"
	keyReversal                = "Reversal of direct withdrawal %[1]s"
	keyContributionReversed    = "Reversal contribution %[1]s (%[2]s/%[3]s)"
)

var dutch = map[string]string{
	keyContributionInstruction: "Contributie %[1]s %[2]s %[3]s Vragen? bel %[4]s",
	keyTabInstruction:          "Persoonlijke rekening %[1]s tot %[2]s %[3]s Vragen? bel %[4]s",
	keyContributionRecognized:  "Contributie %[1]s (%[2]s/%[3]s)",
	keyContributionCollected:   "Automatische incasso contributie %[1]s",
	keyTabCollected:            "Automatische incasso persoonlijke rekening %[1]s",
	keyReversal:                "Storno automatische incasso %[1]s",
	keyContributionReversed:    "Storno contributie %[1]s (%[2]s/%[3]s)",
}

var dutchMonths = [...]string{
	"januari", "februari", "maart", "april", "mei", "juni",
	"juli", "augustus", "september", "oktober", "november", "december",
}

var supported = []language.Tag{language.Dutch, language.English}

// Translator formats texts for the organisation running the collections.
type Translator struct {
	organisation string
	phone        string
	loc          *time.Location
	matcher      language.Matcher
	printers     map[language.Tag]*message.Printer
}

func New(organisation, phone string, loc *time.Location) *Translator {
	cat := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range dutch {
		// The builder only fails for malformed messages.
		if err := cat.SetString(language.Dutch, key, msg); err != nil {
			panic(fmt.Sprintf("i18n: %s: %v", key, err))
		}
	}

	printers := make(map[language.Tag]*message.Printer, len(supported))
	for _, tag := range supported {
		printers[tag] = message.NewPrinter(tag, message.Catalog(cat))
	}

	return &Translator{
		organisation: organisation,
		phone:        phone,
		loc:          loc,
		matcher:      language.NewMatcher(supported),
		printers:     printers,
	}
}

// Lang resolves a preferred language like "en" or "nl-NL". Unknown values
// resolve to Dutch.
func (t *Translator) Lang(preferred string) language.Tag {
	_, idx := language.MatchStrings(t.matcher, preferred)
	return supported[idx]
}

func (t *Translator) printer(preferred string) (*message.Printer, language.Tag) {
	tag := t.Lang(preferred)
	return t.printers[tag], tag
}

// Date formats a day as "5 January 2024" (or "5 januari 2024").
func (t *Translator) Date(preferred string, d time.Time) string {
	_, tag := t.printer(preferred)
	return formatDate(tag, d.In(t.loc))
}

// DateTime formats like Date followed by "15:04".
func (t *Translator) DateTime(preferred string, d time.Time) string {
	d = d.In(t.loc)
	return t.Date(preferred, d) + " " + d.Format("15:04")
}

func formatDate(tag language.Tag, d time.Time) string {
	month := d.Month().String()
	if tag == language.Dutch {
		month = dutchMonths[d.Month()-1]
	}
	return strconv.Itoa(d.Day()) + " " + month + " " + strconv.Itoa(d.Year())
}

// Years are passed as strings, the printer would otherwise group digits.
func yearRange(year int) (string, string) {
	return strconv.Itoa(year), strconv.Itoa(year + 1)
}

func (t *Translator) ContributionInstruction(preferred, membershipType, name string) string {
	p, _ := t.printer(preferred)
	return p.Sprintf(keyContributionInstruction, t.organisation, membershipType, name, t.phone)
}

func (t *Translator) TabInstruction(preferred string, end time.Time, name string) string {
	p, _ := t.printer(preferred)
	return p.Sprintf(keyTabInstruction, t.organisation, t.DateTime(preferred, end), name, t.phone)
}

func (t *Translator) ContributionRecognized(preferred, membershipType string, year int) string {
	p, _ := t.printer(preferred)
	from, to := yearRange(year)
	return p.Sprintf(keyContributionRecognized, membershipType, from, to)
}

func (t *Translator) ContributionCollected(preferred string, executionDate time.Time) string {
	p, _ := t.printer(preferred)
	return p.Sprintf(keyContributionCollected, t.Date(preferred, executionDate))
}

func (t *Translator) TabCollected(preferred string, executionDate time.Time) string {
	p, _ := t.printer(preferred)
	return p.Sprintf(keyTabCollected, t.Date(preferred, executionDate))
}

func (t *Translator) Reversal(preferred string, executionDate time.Time) string {
	p, _ := t.printer(preferred)
	return p.Sprintf(keyReversal, t.Date(preferred, executionDate))
}

func (t *Translator) ContributionReversed(preferred, membershipType string, year int) string {
	p, _ := t.printer(preferred)
	from, to := yearRange(year)
	return p.Sprintf(keyContributionReversed, membershipType, from, to)
}
