package appcmd

import (
	"context"
	"maps"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// TranslationContextLocation says which part of a payload a string came from.
type TranslationContextLocation int

const (
	LocationCommandName TranslationContextLocation = iota + 1
	LocationCommandDescription
	LocationGroupName
	LocationGroupDescription
	LocationParameterName
	LocationParameterDescription
	LocationChoiceName
	LocationOther
)

func (l TranslationContextLocation) String() string {
	switch l {
	case LocationCommandName:
		return "command name"
	case LocationCommandDescription:
		return "command description"
	case LocationGroupName:
		return "group name"
	case LocationGroupDescription:
		return "group description"
	case LocationParameterName:
		return "parameter name"
	case LocationParameterDescription:
		return "parameter description"
	case LocationChoiceName:
		return "choice name"
	}
	return "other"
}

// TranslationContext identifies the string being translated. Data is the
// command, option or choice it belongs to.
type TranslationContext struct {
	Location TranslationContextLocation
	// Path is the qualified name of the owning command, e.g. "tasks add".
	Path string
	Data any
}

// LocaleString is a translatable string plus arbitrary extras for the
// translator.
type LocaleString struct {
	Message string
	Extras  map[string]any
}

// Translator localizes payload strings during sync. Returning ok=false leaves
// the locale untranslated.
type Translator interface {
	Translate(ctx context.Context, s LocaleString, locale discordgo.Locale, tc TranslationContext) (string, bool, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, s LocaleString, locale discordgo.Locale, tc TranslationContext) (string, bool, error)

func (f TranslatorFunc) Translate(ctx context.Context, s LocaleString, locale discordgo.Locale, tc TranslationContext) (string, bool, error) {
	return f(ctx, s, locale, tc)
}

// defaultLocales are the locales Discord supports, in stable order.
func defaultLocales() []discordgo.Locale {
	out := make([]discordgo.Locale, 0, len(discordgo.Locales))
	for l := range discordgo.Locales {
		if l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// localizer fills localization maps of a wire payload. Static localizations
// already present in the payload win over translator output.
type localizer struct {
	t       Translator
	locales []discordgo.Locale
}

func (l *localizer) command(ctx context.Context, cmd *discordgo.ApplicationCommand) error {
	nameLoc, descLoc := LocationCommandName, LocationCommandDescription
	if cmd.Type == discordgo.ChatApplicationCommand && hasSubcommands(cmd.Options) {
		nameLoc, descLoc = LocationGroupName, LocationGroupDescription
	}
	tc := TranslationContext{Path: cmd.Name, Data: cmd}

	names := derefLocalizations(cmd.NameLocalizations)
	tc.Location = nameLoc
	if err := l.fill(ctx, names, cmd.Name, tc); err != nil {
		return err
	}
	if len(names) > 0 {
		cmd.NameLocalizations = &names
	}
	if cmd.Type != discordgo.ChatApplicationCommand {
		return nil
	}

	descs := derefLocalizations(cmd.DescriptionLocalizations)
	tc.Location = descLoc
	if err := l.fill(ctx, descs, cmd.Description, tc); err != nil {
		return err
	}
	if len(descs) > 0 {
		cmd.DescriptionLocalizations = &descs
	}
	return l.options(ctx, cmd.Name, cmd.Options)
}

func (l *localizer) options(ctx context.Context, path string, opts []*discordgo.ApplicationCommandOption) error {
	for _, o := range opts {
		nameLoc, descLoc := LocationParameterName, LocationParameterDescription
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand:
			nameLoc, descLoc = LocationCommandName, LocationCommandDescription
		case discordgo.ApplicationCommandOptionSubCommandGroup:
			nameLoc, descLoc = LocationGroupName, LocationGroupDescription
		}
		tc := TranslationContext{Path: path, Data: o}

		if o.NameLocalizations == nil {
			o.NameLocalizations = map[discordgo.Locale]string{}
		}
		tc.Location = nameLoc
		if err := l.fill(ctx, o.NameLocalizations, o.Name, tc); err != nil {
			return err
		}
		if o.DescriptionLocalizations == nil {
			o.DescriptionLocalizations = map[discordgo.Locale]string{}
		}
		tc.Location = descLoc
		if err := l.fill(ctx, o.DescriptionLocalizations, o.Description, tc); err != nil {
			return err
		}
		if len(o.NameLocalizations) == 0 {
			o.NameLocalizations = nil
		}
		if len(o.DescriptionLocalizations) == 0 {
			o.DescriptionLocalizations = nil
		}

		for _, c := range o.Choices {
			if c.NameLocalizations == nil {
				c.NameLocalizations = map[discordgo.Locale]string{}
			}
			ctc := TranslationContext{Location: LocationChoiceName, Path: path, Data: c}
			if err := l.fill(ctx, c.NameLocalizations, c.Name, ctc); err != nil {
				return err
			}
			if len(c.NameLocalizations) == 0 {
				c.NameLocalizations = nil
			}
		}

		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			if err := l.options(ctx, path+" "+o.Name, o.Options); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *localizer) fill(ctx context.Context, dst map[discordgo.Locale]string, msg string, tc TranslationContext) error {
	for _, locale := range l.locales {
		if _, ok := dst[locale]; ok {
			continue
		}
		s, ok, err := l.t.Translate(ctx, LocaleString{Message: msg}, locale, tc)
		if err != nil {
			return &TranslationError{Message: msg, Locale: locale, Context: tc, Err: err}
		}
		if ok && s != "" {
			dst[locale] = s
		}
	}
	return nil
}

func derefLocalizations(m *map[discordgo.Locale]string) map[discordgo.Locale]string {
	out := map[discordgo.Locale]string{}
	if m != nil {
		maps.Copy(out, *m)
	}
	return out
}

func hasSubcommands(opts []*discordgo.ApplicationCommandOption) bool {
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand || o.Type == discordgo.ApplicationCommandOptionSubCommandGroup {
			return true
		}
	}
	return false
}
