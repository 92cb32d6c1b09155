package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
)

const (
	ParseModeHTML  = "HTML"
	ParseModePlain = ""
)

// Message is one outbound delivery.
type Message struct {
	ChatID    int64
	Text      string
	ParseMode string
	Silent    bool
}

// FormatElapsed renders d as "45 min.", "2 h." or "2 h. and 5 min.".
// Hours are used from 60 minutes on.
func FormatElapsed(d time.Duration, lp LangPack) string {
	if d < 0 {
		d = 0
	}
	mins := int(d / time.Minute)
	if mins < 60 {
		return fmt.Sprintf("%d %s.", mins, lp.Minutes)
	}
	hours := mins / 60
	mins = mins % 60
	if mins == 0 {
		return fmt.Sprintf("%d %s.", hours, lp.Hours)
	}
	return fmt.Sprintf("%d %s. %s %d %s.", hours, lp.Hours, lp.And, mins, lp.Minutes)
}

// NightWindow is [Start, End) in local hours; it may wrap midnight.
type NightWindow struct {
	Start    int
	End      int
	Location *time.Location
}

func (w NightWindow) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return h >= w.Start && h < w.End
	default:
		return h >= w.Start || h < w.End
	}
}

// Composer renders transition messages per subscriber.
type Composer struct {
	Packs          Packs
	Night          NightWindow
	SurgeWarnAfter time.Duration
}

// Compose builds the notification for sub. previous may be nil.
func (c Composer) Compose(transition, previous *models.StatusEvent, sub models.Subscriber) Message {
	return c.Render(transition, previous, []models.Subscriber{sub}).Message(sub)
}

// Rendered holds one transition's text per language pack.
type Rendered struct {
	packs Packs
	texts map[string]string
	night bool
}

// Render computes the text once for every language pack the subscribers use.
func (c Composer) Render(transition, previous *models.StatusEvent, subscribers []models.Subscriber) Rendered {
	r := Rendered{
		packs: c.Packs,
		texts: make(map[string]string),
		night: c.Night.Contains(transition.CreatedAt),
	}
	for _, sub := range subscribers {
		lp := c.Packs.For(sub.LanguageCode)
		if _, ok := r.texts[lp.Code]; !ok {
			r.texts[lp.Code] = c.Text(lp, transition, previous)
		}
	}
	return r
}

// Message addresses the rendered text to sub. sub must have been passed to Render.
func (r Rendered) Message(sub models.Subscriber) Message {
	return Message{
		ChatID:    sub.ID,
		Text:      r.texts[r.packs.For(sub.LanguageCode).Code],
		ParseMode: ParseModeHTML,
		Silent:    r.night && !sub.NightSoundEnabled,
	}
}

func (c Composer) Text(lp LangPack, transition, previous *models.StatusEvent) string {
	state, emoji := lp.Off, "🔴"
	if transition.Value {
		state, emoji = lp.On, "🟢"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s  %s %s  %s\n", lp.Attention, emoji, lp.Power, state, emoji)

	if previous != nil && previous.Value != transition.Value {
		elapsed := transition.CreatedAt.Sub(previous.CreatedAt)
		lead := lp.WasOffFor
		if previous.Value {
			lead = lp.WasOnFor
		}
		fmt.Fprintf(&b, "%s %s\n", lead, FormatElapsed(elapsed, lp))
		if c.SurgeWarnAfter > 0 && elapsed < c.SurgeWarnAfter {
			b.WriteString(lp.SurgeWarn)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(lp.Footer)
	return b.String()
}
