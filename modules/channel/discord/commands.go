package discord

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/flemzord/cronclaw/internal/command"
	"github.com/flemzord/cronclaw/internal/i18n"
)

// maxDescription is Discord's limit for command and option descriptions.
const maxDescription = 100

// discordLocales maps catalog languages to Discord locales.
var discordLocales = map[string]discordgo.Locale{
	"en":    discordgo.EnglishUS,
	"zh-TW": discordgo.ChineseTW,
}

// localizedCatalogs loads a catalog for every language Discord can show.
func localizedCatalogs() map[discordgo.Locale]*i18n.Catalog {
	out := make(map[discordgo.Locale]*i18n.Catalog)
	for _, lang := range i18n.Languages() {
		loc, ok := discordLocales[lang]
		if !ok {
			continue
		}
		out[loc] = i18n.MustLoad(lang)
	}
	return out
}

// applicationCommands converts router definitions into slash commands.
// Descriptions come from text; locales adds per-locale translations.
func applicationCommands(defs []command.Definition, text *i18n.Catalog, locales map[discordgo.Locale]*i18n.Catalog) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, def := range defs {
		cmd := &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: describe(text, def.DescKey, def.Name),
		}
		if loc := localize(locales, def.DescKey); len(loc) > 0 {
			cmd.DescriptionLocalizations = &loc
		}
		for _, sub := range def.Subs {
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:                     discordgo.ApplicationCommandOptionSubCommand,
				Name:                     sub.Name,
				Description:              describe(text, sub.DescKey, sub.Name),
				DescriptionLocalizations: localize(locales, sub.DescKey),
				Options:                  commandOptions(sub.Options, text, locales),
			})
		}
		cmd.Options = append(cmd.Options, commandOptions(def.Options, text, locales)...)
		out = append(out, cmd)
	}
	return out
}

func commandOptions(opts []command.Option, text *i18n.Catalog, locales map[discordgo.Locale]*i18n.Catalog) []*discordgo.ApplicationCommandOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, opt := range opts {
		o := &discordgo.ApplicationCommandOption{
			Type:                     discordgo.ApplicationCommandOptionString,
			Name:                     opt.Name,
			Description:              describe(text, opt.DescKey, opt.Name),
			DescriptionLocalizations: localize(locales, opt.DescKey),
			Required:                 opt.Required,
		}
		for _, choice := range opt.Choices {
			o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
		}
		out = append(out, o)
	}
	return out
}

// describe returns the catalog text for key, or fallback when the key is
// missing, cut to Discord's limit.
func describe(text *i18n.Catalog, key, fallback string) string {
	s := text.Get(key)
	if key == "" || s == key {
		s = fallback
	}
	return truncate(s, maxDescription)
}

func localize(locales map[discordgo.Locale]*i18n.Catalog, key string) map[discordgo.Locale]string {
	if key == "" || len(locales) == 0 {
		return nil
	}
	out := make(map[discordgo.Locale]string, len(locales))
	for loc, cat := range locales {
		if s := cat.Get(key); s != key {
			out[loc] = truncate(s, maxDescription)
		}
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence,
// marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	const ellipsis = "…"
	cut := n - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
