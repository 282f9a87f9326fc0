package normalize

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// Word lists for human-readable run names. Short on purpose; run names only
// need to be memorable, not unique (IDs carry uniqueness).
var (
	slugAdjectives = []string{
		"able", "brisk", "calm", "daring", "eager", "fancy", "gentle",
		"happy", "ivory", "jolly", "keen", "lively", "mellow", "nimble",
		"opal", "proud", "quiet", "rapid", "sleek", "tidy", "upbeat",
		"vivid", "witty", "zesty",
	}
	slugNouns = []string{
		"ant", "badger", "crane", "dolphin", "eagle", "ferret", "gecko",
		"heron", "ibis", "jackal", "koala", "lemur", "marmot", "newt",
		"otter", "puffin", "quail", "raven", "seal", "toucan", "urchin",
		"vole", "walrus", "yak",
	}
)

// GenerateSlug returns n dash-joined random words ending in a noun,
// e.g. "brisk-otter" for n=2.
func GenerateSlug(n int) string {
	if n < 1 {
		n = 1
	}
	words := make([]string, n)
	for i := 0; i < n-1; i++ {
		words[i] = slugAdjectives[rand.IntN(len(slugAdjectives))]
	}
	words[n-1] = slugNouns[rand.IntN(len(slugNouns))]
	return strings.Join(words, "-")
}

// Defaulter fills absent run/state names and scheduled timestamps. The clock
// and slug generator are injectable; zero values use the real ones. All
// methods only fill gaps, never overwrite explicit values.
type Defaulter struct {
	now  func() time.Time
	slug func() string
}

// NewDefaulter creates a Defaulter. nil arguments fall back to time.Now and
// a two-word random slug.
func NewDefaulter(now func() time.Time, slug func() string) *Defaulter {
	if now == nil {
		now = time.Now
	}
	if slug == nil {
		slug = func() string { return GenerateSlug(2) }
	}
	return &Defaulter{now: now, slug: slug}
}

// RunName returns the given name, or a generated slug when it is empty.
func (d *Defaulter) RunName(name string) string {
	if name != "" {
		return name
	}
	return d.slug()
}

// StateName returns the given name, or the canonical display name derived
// from the state type when it is empty.
func (d *Defaulter) StateName(t schema.StateType, name string) string {
	if name != "" {
		return name
	}
	if display := t.DisplayName(); display != "" {
		return display
	}
	return capitalize(string(t))
}

// ScheduledTime sets state_details.scheduled_time to the current instant for
// scheduled states that lack one; all other inputs pass through untouched.
func (d *Defaulter) ScheduledTime(t schema.StateType, details schema.StateDetails) schema.StateDetails {
	if t == schema.StateTypeScheduled && details.ScheduledTime == nil {
		now := d.now().UTC()
		details.ScheduledTime = &now
	}
	return details
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	return fmt.Sprintf("%s%s", strings.ToUpper(lower[:1]), lower[1:])
}
