package appcmd

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// Platform limits.
const (
	MaxChatInputCommands = 100
	MaxContextMenus      = 5
	MaxGroupChildren     = 25
	MaxOptions           = 25
	// MaxChoices is enforced by Discord only.
	MaxChoices           = 25
	MaxNameLength        = 32
	MaxDescriptionLength = 100
)

// placeholderDescription is used for parameters and commands with no text.
const placeholderDescription = "…"

var nameRe = regexp.MustCompile(`^[-_\p{L}\p{N}\p{Devanagari}\p{Thai}]{1,32}$`)

// DefaultValue wraps a parameter default so that nil can be a real default.
type DefaultValue struct {
	Value any
}

// Default marks a parameter optional with the given default.
func Default(v any) *DefaultValue { return &DefaultValue{Value: v} }

// Param declares one handler parameter.
type Param struct {
	Name string
	// Type is required; a nil Type is a configuration error.
	Type        Annotation
	Description string
	// DisplayName overrides the name shown in Discord.
	DisplayName  string
	Default      *DefaultValue
	Choices      []Choice
	Autocomplete AutocompleteFunc

	NameLocalizations        map[discordgo.Locale]string
	DescriptionLocalizations map[discordgo.Locale]string
}

// Option is the derived descriptor for one parameter.
type Option struct {
	// Name is the parameter name used as the Namespace key.
	Name string
	// DisplayName is what Discord shows and sends back.
	DisplayName  string
	Description  string
	Type         discordgo.ApplicationCommandOptionType
	Required     bool
	Default      any
	Choices      []Choice
	ChannelTypes []discordgo.ChannelType
	MinValue     *float64
	MaxValue     *float64
	MinLength    *int
	MaxLength    *int
	Autocomplete bool

	NameLocalizations        map[discordgo.Locale]string
	DescriptionLocalizations map[discordgo.Locale]string

	transformer  Transformer
	autocomplete AutocompleteFunc
}

// Transformer returns the transformer that converts this option's values.
func (o *Option) Transformer() Transformer { return o.transformer }

// Wire returns the option in Discord's wire form.
func (o *Option) Wire() *discordgo.ApplicationCommandOption {
	w := &discordgo.ApplicationCommandOption{
		Type:                     o.Type,
		Name:                     o.DisplayName,
		Description:              o.Description,
		Required:                 o.Required,
		ChannelTypes:             slices.Clone(o.ChannelTypes),
		Autocomplete:             o.Autocomplete,
		MinValue:                 o.MinValue,
		MinLength:                o.MinLength,
		NameLocalizations:        maps.Clone(o.NameLocalizations),
		DescriptionLocalizations: maps.Clone(o.DescriptionLocalizations),
	}
	if o.MaxValue != nil {
		w.MaxValue = *o.MaxValue
	}
	if o.MaxLength != nil {
		w.MaxLength = *o.MaxLength
	}
	for _, c := range o.Choices {
		w.Choices = append(w.Choices, c.wire())
	}
	return w
}

// OptionFromWire rebuilds a descriptor from its wire form. The result has no
// transformer; it is meant for comparing local and remote definitions.
func OptionFromWire(w *discordgo.ApplicationCommandOption) *Option {
	o := &Option{
		Name:                     w.Name,
		DisplayName:              w.Name,
		Description:              w.Description,
		Type:                     w.Type,
		Required:                 w.Required,
		ChannelTypes:             slices.Clone(w.ChannelTypes),
		Autocomplete:             w.Autocomplete,
		MinValue:                 w.MinValue,
		MinLength:                w.MinLength,
		NameLocalizations:        maps.Clone(w.NameLocalizations),
		DescriptionLocalizations: maps.Clone(w.DescriptionLocalizations),
	}
	if w.MaxValue != 0 {
		v := w.MaxValue
		o.MaxValue = &v
	}
	if w.MaxLength != 0 {
		v := w.MaxLength
		o.MaxLength = &v
	}
	for _, c := range w.Choices {
		o.Choices = append(o.Choices, Choice{Name: c.Name, Value: c.Value, NameLocalizations: c.NameLocalizations})
	}
	return o
}

// deriveOptions builds descriptors for params, applying externally attached
// descriptions and renames. Required options are moved ahead of optional
// ones, keeping relative order within each group.
func deriveOptions(command string, params []Param, describe, rename map[string]string) ([]*Option, error) {
	const op = "derive options"
	if len(params) > MaxOptions {
		return nil, configErr(op, command, "too many parameters (%d > %d)", len(params), MaxOptions)
	}
	known := make(map[string]struct{}, len(params))
	for _, p := range params {
		known[p.Name] = struct{}{}
	}
	for _, extra := range [...]struct {
		what string
		m    map[string]string
	}{{"description", describe}, {"rename", rename}} {
		for name := range extra.m {
			if _, ok := known[name]; !ok {
				return nil, configErr(op, command, "%s given for unknown parameter %q", extra.what, name)
			}
		}
	}

	options := make([]*Option, 0, len(params))
	names := make(map[string]struct{}, len(params))
	displays := make(map[string]struct{}, len(params))
	for _, p := range params {
		o, err := deriveOption(p, describe[p.Name], rename[p.Name])
		if err != nil {
			return nil, &ConfigError{Op: op, Name: command, Err: fmt.Errorf("parameter %q: %w", p.Name, err)}
		}
		if _, dup := names[o.Name]; dup {
			return nil, configErr(op, command, "duplicate parameter %q", o.Name)
		}
		if _, dup := displays[o.DisplayName]; dup {
			return nil, configErr(op, command, "duplicate display name %q", o.DisplayName)
		}
		names[o.Name] = struct{}{}
		displays[o.DisplayName] = struct{}{}
		options = append(options, o)
	}

	slices.SortStableFunc(options, func(a, b *Option) int {
		switch {
		case a.Required == b.Required:
			return 0
		case a.Required:
			return -1
		}
		return 1
	})
	return options, nil
}

func deriveOption(p Param, description, display string) (*Option, error) {
	if err := validateName(p.Name, true); err != nil {
		return nil, err
	}
	if p.Type == nil {
		return nil, errors.New("missing type annotation")
	}
	t, optional, err := resolveAnnotation(p.Type)
	if err != nil {
		return nil, err
	}

	if display == "" {
		display = p.DisplayName
	}
	if display == "" {
		display = p.Name
	}
	if err := validateName(display, true); err != nil {
		return nil, fmt.Errorf("display name: %w", err)
	}
	if description == "" {
		description = p.Description
	}
	if description == "" {
		description = placeholderDescription
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, fmt.Errorf("description exceeds %d characters", MaxDescriptionLength)
	}

	o := &Option{
		Name:                     p.Name,
		DisplayName:              display,
		Description:              description,
		Type:                     t.Type(),
		Required:                 true,
		ChannelTypes:             t.ChannelTypes(),
		Choices:                  t.Choices(),
		NameLocalizations:        maps.Clone(p.NameLocalizations),
		DescriptionLocalizations: maps.Clone(p.DescriptionLocalizations),
		transformer:              t,
	}

	lo, hi := t.Bounds()
	switch o.Type {
	case discordgo.ApplicationCommandOptionString:
		o.MinLength, o.MaxLength = toIntPtr(lo), toIntPtr(hi)
	case discordgo.ApplicationCommandOptionInteger, discordgo.ApplicationCommandOptionNumber:
		o.MinValue, o.MaxValue = lo, hi
	}

	if err := applyChoices(o, t, p.Choices); err != nil {
		return nil, err
	}

	switch {
	case p.Default != nil:
		o.Required = false
		v, err := validateDefault(t, p.Default.Value)
		if err != nil {
			return nil, err
		}
		o.Default = v
	case optional:
		o.Required = false
	}

	o.autocomplete = p.Autocomplete
	if o.autocomplete == nil {
		if ac, ok := t.(Autocompleter); ok {
			o.autocomplete = ac.Autocomplete
		}
	}
	if o.autocomplete != nil {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString, discordgo.ApplicationCommandOptionInteger, discordgo.ApplicationCommandOptionNumber:
		default:
			return nil, fmt.Errorf("autocomplete is not supported for %s options", optionTypeLabel(o.Type))
		}
		if len(o.Choices) > 0 {
			return nil, errors.New("autocomplete and choices are mutually exclusive")
		}
		o.Autocomplete = true
	}
	return o, nil
}

// applyChoices attaches Param.Choices. ChoiceOf requires them; annotations
// that already define choices reject them.
func applyChoices(o *Option, t Transformer, choices []Choice) error {
	c, isChoice := t.(*choice)
	if len(choices) == 0 {
		if isChoice {
			return errors.New("ChoiceOf requires Param.Choices")
		}
		return nil
	}
	if len(o.Choices) > 0 {
		return errors.New("choices are already defined by the annotation")
	}
	switch o.Type {
	case discordgo.ApplicationCommandOptionString, discordgo.ApplicationCommandOptionInteger, discordgo.ApplicationCommandOptionNumber:
	default:
		return fmt.Errorf("choices are not supported for %s options", optionTypeLabel(o.Type))
	}
	normalized := make([]Choice, len(choices))
	for i, ch := range choices {
		if ch.Name == "" || utf8.RuneCountInString(ch.Name) > MaxDescriptionLength {
			return fmt.Errorf("choice name %q must be 1-%d characters", ch.Name, MaxDescriptionLength)
		}
		v, err := normalizeScalar(o.Type, ch.Value)
		if err != nil {
			return fmt.Errorf("choice %q: %w", ch.Name, err)
		}
		normalized[i] = Choice{Name: ch.Name, Value: v, NameLocalizations: maps.Clone(ch.NameLocalizations)}
	}
	o.Choices = normalized
	if isChoice {
		c.choices = normalized
	}
	return nil
}

// validateDefault checks literal defaults of built-in options against the Go
// types allowed for their wire type and converts them to the type inbound
// values of that option have. Custom transformers accept anything as is.
func validateDefault(t Transformer, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.(type) {
	case *passthrough, *ranged, *literal, *entityRef, *channelUnion, *mentionableUnion:
	default:
		return v, nil
	}
	ok := false
	switch t.Type() {
	case discordgo.ApplicationCommandOptionString:
		_, ok = v.(string)
	case discordgo.ApplicationCommandOptionInteger:
		ok = scalarKind(v) == Integer
	case discordgo.ApplicationCommandOptionNumber:
		k := scalarKind(v)
		ok = k == Number || k == Integer
	case discordgo.ApplicationCommandOptionBoolean:
		_, ok = v.(bool)
	}
	if !ok {
		return nil, fmt.Errorf("invalid default of type %T for %s option", v, optionTypeLabel(t.Type()))
	}
	return normalizeScalar(t.Type(), v)
}

func validateName(name string, chatInput bool) error {
	if !chatInput {
		if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
			return fmt.Errorf("name %q must be 1-%d characters", name, MaxNameLength)
		}
		return nil
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("name %q must be 1-%d letters, digits, '-' or '_'", name, MaxNameLength)
	}
	if strings.ToLower(name) != name {
		return fmt.Errorf("name %q must be lowercase", name)
	}
	return nil
}

// shorten keeps the first paragraph, collapses whitespace and cuts on a word
// boundary so the result fits in MaxDescriptionLength with a trailing ellipsis.
func shorten(s string) string {
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}
	words := strings.Fields(s)
	var b strings.Builder
	for _, w := range words {
		next := utf8.RuneCountInString(w)
		if b.Len() > 0 {
			next++
		}
		if utf8.RuneCountInString(b.String())+next+utf8.RuneCountInString(placeholderDescription) > MaxDescriptionLength {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() == 0 {
		r := []rune(s)
		return string(r[:MaxDescriptionLength-1]) + placeholderDescription
	}
	return b.String() + placeholderDescription
}

func toIntPtr(f *float64) *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
