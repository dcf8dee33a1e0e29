package engine

import (
	"fmt"
	"sort"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/threat"

	"github.com/flosch/pongo2/v6"
)

// Notice template names. Allow actions use the tier name ("caution"), everything else uses the action name.
const (
	NoticeCaution       = "caution"
	NoticePublicWarning = string(moderation.ActionPublicWarning)
	NoticeRemoveAndWarn = string(moderation.ActionRemoveAndWarn)
	NoticeRemoveAndMute = string(moderation.ActionRemoveAndMute)
	NoticeRemoveAndBan  = string(moderation.ActionRemoveAndBan)
)

var DefaultNoticeTemplates = map[string]string{
	NoticeCaution:       `Be careful with {{ url }}: some signals suggest it may be unsafe.`,
	NoticePublicWarning: `Suspicious link from <@{{ user }}>, proceed with caution! {{ url }} (confidence {{ confidence }}%){% if reasons %} Concerns: {{ reasons|join:"; " }}{% endif %}`,
	NoticeRemoveAndWarn: `Removed a dangerous link from <@{{ user }}>. Warning {{ warnings }}/{{ mute_threshold }}.{% if reasons %} Reasons: {{ reasons|join:"; " }}{% endif %}`,
	NoticeRemoveAndMute: `Removed a dangerous link from <@{{ user }}>, who has been muted until {{ mute_until }} after {{ warnings }} warnings.`,
	NoticeRemoveAndBan:  `Removed a dangerous link from <@{{ user }}>, who has been banned after repeated offenses.`,
}

// User-facing notice text, rendered from pongo2 templates. Checker failures and internal errors never appear in notices.
type Notices struct {
	templates     map[string]*pongo2.Template
	MuteThreshold int
}

// Compiles notice templates. Missing names fall back to the defaults.
func NewNotices(overrides map[string]string, muteThreshold int) (*Notices, error) {
	n := &Notices{
		templates:     make(map[string]*pongo2.Template),
		MuteThreshold: muteThreshold,
	}
	for name, src := range DefaultNoticeTemplates {
		if o, ok := overrides[name]; ok {
			src = o
		}
		// notices are chat text, not HTML
		tpl, err := pongo2.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
		if err != nil {
			return nil, fmt.Errorf("notice template %q: %w", name, err)
		}
		n.templates[name] = tpl
	}
	for name := range overrides {
		if _, ok := DefaultNoticeTemplates[name]; !ok {
			return nil, fmt.Errorf("unknown notice template: %q", name)
		}
	}
	return n, nil
}

// Renders the notice for an outcome, or empty string if none applies
func (n *Notices) Render(msg *event.MessageEvent, worst *threat.Assessment, out *Outcome) (string, error) {
	name := string(out.Action)
	if out.Action == moderation.ActionAllow {
		if worst == nil || worst.Tier != threat.Caution {
			return "", nil
		}
		name = NoticeCaution
	}
	tpl, ok := n.templates[name]
	if !ok {
		return "", nil
	}
	data := pongo2.Context{
		"user":           msg.UserID,
		"channel":        msg.ChannelID,
		"warnings":       out.Warnings,
		"mute_threshold": n.MuteThreshold,
		"mute_until":     "",
	}
	if out.MuteUntil != nil {
		data["mute_until"] = out.MuteUntil.UTC().Format("2006-01-02 15:04 MST")
	}
	if worst != nil {
		data["url"] = truncate(worst.URL, 50)
		data["domain"] = worst.Domain
		data["tier"] = worst.Tier.String()
		data["confidence"] = fmt.Sprintf("%.0f", worst.Score*100)
		data["reasons"] = assessmentReasons(worst, 3)
	}
	return tpl.Execute(data)
}

// Human-readable details from the strongest usable results, most severe first
func assessmentReasons(a *threat.Assessment, limit int) []string {
	var results []int
	for i, r := range a.Results {
		if r.Usable() && r.Score >= 0.5 && r.Detail != "" {
			results = append(results, i)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return a.Results[results[i]].Score > a.Results[results[j]].Score
	})
	var out []string
	for _, i := range results {
		if len(out) >= limit {
			break
		}
		out = append(out, a.Results[i].Detail)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
