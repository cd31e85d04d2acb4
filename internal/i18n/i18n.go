package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"quizmaster/internal/domain"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

type langKey struct{}

var (
	bundle      *i18n.Bundle
	defaultLang = "en"
	matcher     language.Matcher
)

// Init loads the translation bundle with lang as the fallback language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	// The default language goes first so the matcher falls back to it.
	supported := []language.Tag{tag}
	for _, t := range b.LanguageTags() {
		if t != tag {
			supported = append(supported, t)
		}
	}

	bundle = b
	defaultLang = tag.String()
	matcher = language.NewMatcher(supported)
	return nil
}

// Match picks the best supported language for the given preferences
// (language codes or Accept-Language values), most preferred first.
func Match(prefs ...string) string {
	if matcher == nil {
		return defaultLang
	}
	for _, p := range prefs {
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(tags) == 0 {
			continue
		}
		tag, _, conf := matcher.Match(tags...)
		if conf == language.No {
			continue
		}
		base, _ := tag.Base()
		return base.String()
	}
	return defaultLang
}

// NewLocalizer creates a localizer for the given language.
func NewLocalizer(lang string) *i18n.Localizer {
	if bundle == nil {
		return nil
	}
	return i18n.NewLocalizer(bundle, lang, defaultLang)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return NewLocalizer(defaultLang)
}

func localize(loc *i18n.Localizer, cfg *i18n.LocalizeConfig, fallback string) string {
	if loc == nil {
		return fallback
	}
	s, err := loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return fallback
	}
	return s
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(localizerFromCtx(ctx), &i18n.LocalizeConfig{MessageID: msgID}, msgID)
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(localizerFromCtx(ctx), &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	}, msgID)
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(localizerFromCtx(ctx), &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	}, msgID)
}

// HintUnavailable is the placeholder shown when the hint service fails.
func HintUnavailable(lang string) string {
	return localize(NewLocalizer(lang), &i18n.LocalizeConfig{MessageID: "HintUnavailable"}, "Hint unavailable right now.")
}

// LocalizeBadges rewrites badge names, groups and descriptions into the
// context language. Untranslated entries keep their catalog text.
func LocalizeBadges(ctx context.Context, views []domain.BadgeView) []domain.BadgeView {
	loc := localizerFromCtx(ctx)
	out := make([]domain.BadgeView, len(views))
	for i, v := range views {
		v.Name = localize(loc, &i18n.LocalizeConfig{MessageID: "BadgeName_" + v.ID}, v.Name)
		v.Description = localize(loc, &i18n.LocalizeConfig{MessageID: "BadgeDesc_" + v.ID}, v.Description)
		v.GroupName = localize(loc, &i18n.LocalizeConfig{MessageID: "BadgeGroup_" + string(v.Group)}, string(v.Group))
		out[i] = v
	}
	return out
}

// DefaultLanguage is the fallback language chosen at Init.
func DefaultLanguage() string {
	return defaultLang
}

func withLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// Lang returns the language chosen for the request, or the default.
func Lang(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return defaultLang
}
