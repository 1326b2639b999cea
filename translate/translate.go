// Package translate formats user visible messages for the host locale.
package translate

import (
	"log"
	"slices"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

var (
	languages []string
	printer   *message.Printer
)

func init() {
	tags, err := locale.GetLocales()
	if err != nil {
		log.Printf("malbolge: locale: %v", err)
	}

	if len(tags) == 0 {
		tags = []string{"en-US"}
	}

	languages = tags
	printer = message.NewPrinter(message.MatchLanguage(tags...))
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}

// Languages returns the BCP 47 tags the message printer was matched against.
func Languages() []string {
	return slices.Clone(languages)
}
