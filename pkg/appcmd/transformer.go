package appcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Choice is one predefined value for an option. Discord accepts at most 25
// choices per option; the limit is not checked locally.
type Choice struct {
	Name              string
	Value             any
	NameLocalizations map[discordgo.Locale]string
}

func (c Choice) wire() *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:              c.Name,
		Value:             c.Value,
		NameLocalizations: maps.Clone(c.NameLocalizations),
	}
}

// Transformer maps a declared parameter to a wire option type and converts the
// raw inbound value at invocation time. Custom transformers embed
// BaseTransformer and override what they need.
type Transformer interface {
	Type() discordgo.ApplicationCommandOptionType
	ChannelTypes() []discordgo.ChannelType
	// Bounds are min/max value for numeric types and min/max length for strings.
	Bounds() (min, max *float64)
	Choices() []Choice
	Transform(ctx context.Context, it *Interaction, value any) (any, error)

	isTransformer()
}

// Autocompleter is the optional autocomplete capability of a Transformer.
type Autocompleter interface {
	Autocomplete(ctx context.Context, it *Interaction, current any) ([]Choice, error)
}

// AutocompleteFunc produces suggestions for the focused option's partial value.
type AutocompleteFunc func(ctx context.Context, it *Interaction, current any) ([]Choice, error)

// BaseTransformer is a string passthrough. Embedding it makes a type both a
// Transformer and an Annotation.
type BaseTransformer struct{}

func (BaseTransformer) Type() discordgo.ApplicationCommandOptionType {
	return discordgo.ApplicationCommandOptionString
}

func (BaseTransformer) ChannelTypes() []discordgo.ChannelType { return nil }

func (BaseTransformer) Bounds() (min, max *float64) { return nil, nil }

func (BaseTransformer) Choices() []Choice { return nil }

func (BaseTransformer) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	return value, nil
}

func (BaseTransformer) isTransformer() {}
func (BaseTransformer) isAnnotation()  {}

// passthrough handles scalar wire types and attachments.
type passthrough struct {
	BaseTransformer
	typ discordgo.ApplicationCommandOptionType
}

func (p *passthrough) Type() discordgo.ApplicationCommandOptionType { return p.typ }

func (p *passthrough) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	return normalizeScalar(p.typ, value)
}

// entityRef handles user, member, role, mentionable and channel parameters.
type entityRef struct {
	BaseTransformer
	kind     Builtin
	typ      discordgo.ApplicationCommandOptionType
	channels []discordgo.ChannelType
}

func (e *entityRef) Type() discordgo.ApplicationCommandOptionType { return e.typ }

func (e *entityRef) ChannelTypes() []discordgo.ChannelType { return e.channels }

func (e *entityRef) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	switch e.kind {
	case User:
		switch v := value.(type) {
		case *discordgo.Member:
			if v.User != nil {
				return v.User, nil
			}
		case *discordgo.User, Object:
			return v, nil
		}
	case Member:
		if m, ok := value.(*discordgo.Member); ok {
			return m, nil
		}
		return nil, fmt.Errorf("member data unavailable (was the command used outside a guild?)")
	case Role:
		switch v := value.(type) {
		case *discordgo.Role, Object:
			return v, nil
		}
	case Mentionable:
		switch v := value.(type) {
		case *discordgo.Member, *discordgo.User, *discordgo.Role, Object:
			return v, nil
		}
	case Attachment:
		switch v := value.(type) {
		case *discordgo.MessageAttachment, Object:
			return v, nil
		}
	default:
		return checkChannel(value, e.channels)
	}
	return nil, fmt.Errorf("unexpected value of type %T", value)
}

func checkChannel(value any, allowed []discordgo.ChannelType) (any, error) {
	switch v := value.(type) {
	case *discordgo.Channel:
		if len(allowed) > 0 && !slices.Contains(allowed, v.Type) {
			return nil, fmt.Errorf("channel type %d is not one of %v", v.Type, allowed)
		}
		return v, nil
	case Object:
		return v, nil
	}
	return nil, fmt.Errorf("unexpected value of type %T", value)
}

// ranged carries descriptive bounds; values are passed through unchanged.
type ranged struct {
	BaseTransformer
	typ      discordgo.ApplicationCommandOptionType
	min, max *float64
}

func (r *ranged) Type() discordgo.ApplicationCommandOptionType { return r.typ }

func (r *ranged) Bounds() (min, max *float64) { return r.min, r.max }

func (r *ranged) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	return normalizeScalar(r.typ, value)
}

// literal restricts the option to a fixed value set.
type literal struct {
	BaseTransformer
	typ     discordgo.ApplicationCommandOptionType
	choices []Choice
}

func (l *literal) Type() discordgo.ApplicationCommandOptionType { return l.typ }

func (l *literal) Choices() []Choice { return l.choices }

func (l *literal) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	v, err := normalizeScalar(l.typ, value)
	if err != nil {
		return nil, err
	}
	for _, c := range l.choices {
		if c.Value == v {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%v is not one of the allowed values", value)
}

// EnumMember is one member of an Enum annotation.
type EnumMember struct {
	Name  string
	Value any
}

// enum maps members to choices. Scalar members use their values on the wire;
// anything else is keyed by member name.
type enum struct {
	BaseTransformer
	name    string
	typ     discordgo.ApplicationCommandOptionType
	members []EnumMember
	byName  bool
}

func (e *enum) Type() discordgo.ApplicationCommandOptionType { return e.typ }

func (e *enum) Choices() []Choice {
	out := make([]Choice, len(e.members))
	for i, m := range e.members {
		if e.byName {
			out[i] = Choice{Name: m.Name, Value: m.Name}
		} else {
			v, _ := normalizeScalar(e.typ, m.Value)
			out[i] = Choice{Name: m.Name, Value: v}
		}
	}
	return out
}

func (e *enum) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	v, err := normalizeScalar(e.typ, value)
	if err != nil {
		return nil, err
	}
	for _, m := range e.members {
		if e.byName {
			if m.Name == v {
				return m, nil
			}
			continue
		}
		if mv, err := normalizeScalar(e.typ, m.Value); err == nil && mv == v {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%v is not a member of %s", value, e.name)
}

// choice matches the wire value back to one of the declared choices and
// returns the Choice itself.
type choice struct {
	BaseTransformer
	typ     discordgo.ApplicationCommandOptionType
	choices []Choice
}

func (c *choice) Type() discordgo.ApplicationCommandOptionType { return c.typ }

func (c *choice) Choices() []Choice { return c.choices }

func (c *choice) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	v, err := normalizeScalar(c.typ, value)
	if err != nil {
		return nil, err
	}
	for _, ch := range c.choices {
		if ch.Value == v {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%v does not match any declared choice", value)
}

// channelUnion accepts any channel whose type is in the union of its members.
type channelUnion struct {
	BaseTransformer
	channels []discordgo.ChannelType
}

func (u *channelUnion) Type() discordgo.ApplicationCommandOptionType {
	return discordgo.ApplicationCommandOptionChannel
}

func (u *channelUnion) ChannelTypes() []discordgo.ChannelType { return u.channels }

func (u *channelUnion) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	return checkChannel(value, u.channels)
}

// mentionableUnion covers unions of users, members and roles.
type mentionableUnion struct {
	BaseTransformer
	typ     discordgo.ApplicationCommandOptionType
	members []Builtin
}

func (u *mentionableUnion) Type() discordgo.ApplicationCommandOptionType { return u.typ }

func (u *mentionableUnion) Transform(_ context.Context, _ *Interaction, value any) (any, error) {
	switch v := value.(type) {
	case *discordgo.Member, *discordgo.User, Object:
		return v, nil
	case *discordgo.Role:
		if slices.Contains(u.members, Role) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unexpected value of type %T", value)
}

// normalizeScalar coerces decoded JSON into the Go type used for a wire type:
// string, int64, float64 or bool. Other wire types pass through.
func normalizeScalar(typ discordgo.ApplicationCommandOptionType, value any) (any, error) {
	switch typ {
	case discordgo.ApplicationCommandOptionString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", value)
	case discordgo.ApplicationCommandOptionInteger:
		return toInt64(value)
	case discordgo.ApplicationCommandOptionNumber:
		return toFloat64(value)
	case discordgo.ApplicationCommandOptionBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", value)
	}
	return value, nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("expected integer, got %T", value)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	if i, err := toInt64(value); err == nil {
		return float64(i), nil
	}
	return 0, fmt.Errorf("expected number, got %T", value)
}
