package notify

import "strings"

// LangPack holds the notification strings of one locale. Texts are HTML.
type LangPack struct {
	Code      string
	Attention string
	Power     string
	On        string
	Off       string
	WasOnFor  string
	WasOffFor string
	SurgeWarn string
	Footer    string
	Minutes   string
	Hours     string
	And       string
}

var (
	English = LangPack{
		Code:      "en",
		Attention: "📢️  <b>ATTENTION</b>  📢",
		Power:     "Power",
		On:        "ON",
		Off:       "OFF",
		WasOnFor:  "⏳Power was on for",
		WasOffFor: "⏳Power was off for",
		SurgeWarn: "⚠️ It could be caused by a power surge.",
		Footer:    "<i>You received this message because you enabled notifications in the bot settings. You can disable them at any time.</i>",
		Minutes:   "min",
		Hours:     "h",
		And:       "and",
	}
	Ukrainian = LangPack{
		Code:      "uk",
		Attention: "📢️  <b>УВАГА</b>  📢",
		Power:     "Світло",
		On:        "Є",
		Off:       "НЕМАЄ",
		WasOnFor:  "⏳Світло було",
		WasOffFor: "⏳Світла не було",
		SurgeWarn: "⚠️ Можливо, це стрибок напруги в мережі.",
		Footer:    "<i>Ви отримали це повідомлення, бо увімкнули сповіщення в налаштуваннях бота. Ви можете вимкнути їх будь-коли.</i>",
		Minutes:   "хв",
		Hours:     "год",
		And:       "і",
	}
	Russian = LangPack{
		Code:      "ru",
		Attention: "📢️  <b>ВНИМАНИЕ</b>  📢",
		Power:     "Свет",
		On:        "ЕСТЬ",
		Off:       "НЕТ",
		WasOnFor:  "⏳Свет был",
		WasOffFor: "⏳Света не было",
		SurgeWarn: "⚠️ Возможно, это скачок напряжения в сети.",
		Footer:    "<i>Вы получили это сообщение, потому что включили уведомления в настройках бота. Вы можете отключить их в любой момент.</i>",
		Minutes:   "мин",
		Hours:     "ч",
		And:       "и",
	}
	Czech = LangPack{
		Code:      "cs",
		Attention: "📢️  <b>POZOR</b>  📢",
		Power:     "Elektřina",
		On:        "ZAPNUTA",
		Off:       "VYPNUTA",
		WasOnFor:  "⏳Elektřina byla zapnutá",
		WasOffFor: "⏳Elektřina byla vypnutá",
		SurgeWarn: "⚠️ Mohlo to být způsobeno přepětím v síti.",
		Footer:    "<i>Tuto zprávu jste dostali, protože jste v nastavení bota zapnuli oznámení. Můžete je kdykoli vypnout.</i>",
		Minutes:   "min",
		Hours:     "h",
		And:       "a",
	}
)

// Packs resolves a Telegram language_code to a LangPack.
type Packs struct {
	byCode   map[string]LangPack
	fallback LangPack
}

func DefaultPacks(fallbackCode string) Packs {
	p := Packs{byCode: map[string]LangPack{}}
	for _, lp := range []LangPack{English, Ukrainian, Russian, Czech} {
		p.byCode[lp.Code] = lp
	}
	// Telegram clients send "cs"; older registrations stored "ch".
	p.byCode["ch"] = Czech
	fb, ok := p.byCode[normalizeCode(fallbackCode)]
	if !ok {
		fb = Russian
	}
	p.fallback = fb
	return p
}

func (p Packs) For(code string) LangPack {
	if lp, ok := p.byCode[normalizeCode(code)]; ok {
		return lp
	}
	if p.fallback.Code == "" {
		return Russian
	}
	return p.fallback
}

// normalizeCode lowercases and drops the region ("en-US" -> "en").
func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}
