package appcmd

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// Annotation describes the declared type of a parameter. It is a closed set:
// the Builtin constants, the constructors in this file, and any type that
// embeds BaseTransformer.
type Annotation interface {
	isAnnotation()
}

// Builtin is a parameter type with a direct wire mapping.
type Builtin int

const (
	String Builtin = iota + 1
	Integer
	Number
	Boolean
	User
	Member
	Role
	Mentionable
	Attachment
	AnyChannel
	TextChannel
	VoiceChannel
	StageChannel
	CategoryChannel
	ForumChannel
	Thread
	DMChannel
	GroupDMChannel
	// None is only meaningful inside Union; see Optional.
	None
)

func (Builtin) isAnnotation() {}

var builtinNames = map[Builtin]string{
	String:          "string",
	Integer:         "integer",
	Number:          "number",
	Boolean:         "boolean",
	User:            "user",
	Member:          "member",
	Role:            "role",
	Mentionable:     "mentionable",
	Attachment:      "attachment",
	AnyChannel:      "channel",
	TextChannel:     "text channel",
	VoiceChannel:    "voice channel",
	StageChannel:    "stage channel",
	CategoryChannel: "category channel",
	ForumChannel:    "forum channel",
	Thread:          "thread",
	DMChannel:       "dm channel",
	GroupDMChannel:  "group dm channel",
	None:            "none",
}

func (b Builtin) String() string {
	if s, ok := builtinNames[b]; ok {
		return s
	}
	return fmt.Sprintf("Builtin(%d)", int(b))
}

var channelKinds = map[Builtin][]discordgo.ChannelType{
	AnyChannel: {
		discordgo.ChannelTypeGuildStageVoice,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildCategory,
		discordgo.ChannelTypeGuildForum,
	},
	TextChannel:     {discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
	VoiceChannel:    {discordgo.ChannelTypeGuildVoice},
	StageChannel:    {discordgo.ChannelTypeGuildStageVoice},
	CategoryChannel: {discordgo.ChannelTypeGuildCategory},
	ForumChannel:    {discordgo.ChannelTypeGuildForum},
	Thread: {
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildPublicThread,
	},
	DMChannel:      {discordgo.ChannelTypeDM},
	GroupDMChannel: {discordgo.ChannelTypeGroupDM},
}

func isChannelKind(b Builtin) bool {
	_, ok := channelKinds[b]
	return ok
}

func isUserKind(b Builtin) bool {
	return b == User || b == Member || b == Role
}

func builtinTransformer(b Builtin) (Transformer, error) {
	switch b {
	case String:
		return &passthrough{typ: discordgo.ApplicationCommandOptionString}, nil
	case Integer:
		return &passthrough{typ: discordgo.ApplicationCommandOptionInteger}, nil
	case Number:
		return &passthrough{typ: discordgo.ApplicationCommandOptionNumber}, nil
	case Boolean:
		return &passthrough{typ: discordgo.ApplicationCommandOptionBoolean}, nil
	case User, Member:
		return &entityRef{kind: b, typ: discordgo.ApplicationCommandOptionUser}, nil
	case Role:
		return &entityRef{kind: b, typ: discordgo.ApplicationCommandOptionRole}, nil
	case Mentionable:
		return &entityRef{kind: b, typ: discordgo.ApplicationCommandOptionMentionable}, nil
	case Attachment:
		return &entityRef{kind: b, typ: discordgo.ApplicationCommandOptionAttachment}, nil
	case None:
		return nil, errors.New("none is only valid inside a union")
	}
	if chans, ok := channelKinds[b]; ok {
		return &entityRef{kind: b, typ: discordgo.ApplicationCommandOptionChannel, channels: slices.Clone(chans)}, nil
	}
	return nil, fmt.Errorf("unsupported builtin %v", b)
}

type transformAnnotation struct{ t Transformer }

func (transformAnnotation) isAnnotation() {}

// Transform attaches an explicit transformer to a parameter.
func Transform(t Transformer) Annotation { return transformAnnotation{t: t} }

type annotated struct {
	base Annotation
	meta []Annotation
}

func (annotated) isAnnotation() {}

// Annotated pairs a nominal type with metadata; resolution uses the first
// metadata element and ignores base.
func Annotated(base Annotation, meta ...Annotation) Annotation {
	return annotated{base: base, meta: meta}
}

type rangeAnnotation struct {
	kind     Builtin
	min, max *float64
}

func (rangeAnnotation) isAnnotation() {}

// Range bounds an Integer or Number by value, or a String by length.
func Range(kind Builtin, min, max float64) Annotation {
	return rangeAnnotation{kind: kind, min: &min, max: &max}
}

// AtLeast is a Range with only a lower bound.
func AtLeast(kind Builtin, min float64) Annotation {
	return rangeAnnotation{kind: kind, min: &min}
}

// AtMost is a Range with only an upper bound.
func AtMost(kind Builtin, max float64) Annotation {
	return rangeAnnotation{kind: kind, max: &max}
}

type enumAnnotation struct {
	name    string
	members []EnumMember
}

func (enumAnnotation) isAnnotation() {}

// Enum declares a closed set of named members. The handler receives the
// matching EnumMember.
func Enum(name string, members ...EnumMember) Annotation {
	return enumAnnotation{name: name, members: members}
}

type choiceAnnotation struct{ kind Builtin }

func (choiceAnnotation) isAnnotation() {}

// ChoiceOf marks a parameter whose choices come from Param.Choices; the handler
// receives the matched Choice rather than the raw value.
func ChoiceOf(kind Builtin) Annotation { return choiceAnnotation{kind: kind} }

type literalAnnotation struct{ values []any }

func (literalAnnotation) isAnnotation() {}

// Literal restricts a parameter to the given values. All values must share
// one of string, integer or float.
func Literal(values ...any) Annotation { return literalAnnotation{values: values} }

type unionAnnotation struct{ members []Annotation }

func (unionAnnotation) isAnnotation() {}

// Union accepts any of its members.
func Union(members ...Annotation) Annotation { return unionAnnotation{members: members} }

// Optional is Union(a, None): the parameter is not required and defaults to nil.
func Optional(a Annotation) Annotation { return unionAnnotation{members: []Annotation{a, None}} }

// resolveAnnotation maps a to its transformer. optional reports that the
// annotation itself forces a nil default.
func resolveAnnotation(a Annotation) (t Transformer, optional bool, err error) {
	switch v := a.(type) {
	case nil:
		return nil, false, errors.New("missing type annotation")
	case Builtin:
		t, err := builtinTransformer(v)
		return t, false, err
	case transformAnnotation:
		if v.t == nil {
			return nil, false, errors.New("transform annotation requires a non-nil transformer")
		}
		return v.t, false, nil
	case annotated:
		if len(v.meta) == 0 {
			return resolveAnnotation(v.base)
		}
		return resolveAnnotation(v.meta[0])
	case rangeAnnotation:
		t, err := resolveRange(v)
		return t, false, err
	case Transformer:
		return v, false, nil
	case enumAnnotation:
		t, err := resolveEnum(v)
		return t, false, err
	case choiceAnnotation:
		switch v.kind {
		case String, Integer, Number:
			t, _ := builtinTransformer(v.kind)
			return &choice{typ: t.Type()}, false, nil
		}
		return nil, false, fmt.Errorf("ChoiceOf(%v) is unsupported; use String, Integer or Number", v.kind)
	case literalAnnotation:
		t, err := resolveLiteral(v)
		return t, false, err
	case unionAnnotation:
		return resolveUnion(v)
	}
	return nil, false, fmt.Errorf("unsupported annotation %T", a)
}

func resolveRange(r rangeAnnotation) (Transformer, error) {
	var typ discordgo.ApplicationCommandOptionType
	switch r.kind {
	case Integer:
		typ = discordgo.ApplicationCommandOptionInteger
	case Number:
		typ = discordgo.ApplicationCommandOptionNumber
	case String:
		typ = discordgo.ApplicationCommandOptionString
	default:
		return nil, fmt.Errorf("range is only supported for string, integer and number, not %v", r.kind)
	}
	if r.min == nil && r.max == nil {
		return nil, errors.New("range must have at least one bound")
	}
	if r.min != nil && r.max != nil && *r.min > *r.max {
		return nil, fmt.Errorf("range minimum %v is greater than maximum %v", *r.min, *r.max)
	}
	for _, b := range []*float64{r.min, r.max} {
		if b == nil {
			continue
		}
		if r.kind != Number && *b != math.Trunc(*b) {
			return nil, fmt.Errorf("range bound %v must be a whole number for %v", *b, r.kind)
		}
		if r.kind == String && *b < 0 {
			return nil, fmt.Errorf("length bound %v cannot be negative", *b)
		}
	}
	// discordgo drops a zero max_value or max_length from the payload, which
	// would leave the option unbounded on Discord's side.
	if r.max != nil && *r.max == 0 {
		return nil, fmt.Errorf("range maximum cannot be 0 for %v: Discord would receive no upper bound", r.kind)
	}
	return &ranged{typ: typ, min: r.min, max: r.max}, nil
}

func resolveEnum(e enumAnnotation) (Transformer, error) {
	if len(e.members) == 0 {
		return nil, fmt.Errorf("enum %s has no members", e.name)
	}
	seen := make(map[string]struct{}, len(e.members))
	for _, m := range e.members {
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("enum %s has duplicate member %q", e.name, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	kind := scalarKind(e.members[0].Value)
	for _, m := range e.members[1:] {
		if scalarKind(m.Value) != kind {
			kind = 0
			break
		}
	}
	switch kind {
	case String, Integer, Number:
		t, _ := builtinTransformer(kind)
		return &enum{name: e.name, typ: t.Type(), members: slices.Clone(e.members)}, nil
	}
	return &enum{name: e.name, typ: discordgo.ApplicationCommandOptionString, members: slices.Clone(e.members), byName: true}, nil
}

func resolveLiteral(l literalAnnotation) (Transformer, error) {
	if len(l.values) == 0 {
		return nil, errors.New("literal requires at least one value")
	}
	kind := scalarKind(l.values[0])
	if kind == 0 {
		return nil, fmt.Errorf("literal values must be string, integer or float, got %T", l.values[0])
	}
	t, _ := builtinTransformer(kind)
	choices := make([]Choice, 0, len(l.values))
	for _, v := range l.values {
		if scalarKind(v) != kind {
			return nil, fmt.Errorf("literal values must share one type: %v is %T", v, v)
		}
		nv, err := normalizeScalar(t.Type(), v)
		if err != nil {
			return nil, err
		}
		choices = append(choices, Choice{Name: fmt.Sprint(v), Value: nv})
	}
	return &literal{typ: t.Type(), choices: choices}, nil
}

func resolveUnion(u unionAnnotation) (Transformer, bool, error) {
	var members []Annotation
	hasNone := false
	var flatten func([]Annotation)
	flatten = func(in []Annotation) {
		for _, m := range in {
			switch v := m.(type) {
			case unionAnnotation:
				flatten(v.members)
			case Builtin:
				if v == None {
					hasNone = true
					continue
				}
				if !slices.ContainsFunc(members, func(x Annotation) bool { return x == Annotation(v) }) {
					members = append(members, v)
				}
			default:
				members = append(members, m)
			}
		}
	}
	flatten(u.members)

	switch {
	case len(members) == 0:
		return nil, false, errors.New("union has no non-none members")
	case len(members) == 1:
		t, optional, err := resolveAnnotation(members[0])
		return t, optional || hasNone, err
	case hasNone:
		t, _, err := resolveUnion(unionAnnotation{members: members})
		return t, true, err
	}

	builtins := make([]Builtin, 0, len(members))
	for _, m := range members {
		b, ok := m.(Builtin)
		if !ok {
			return nil, false, fmt.Errorf("union member %T is not supported", m)
		}
		builtins = append(builtins, b)
	}

	if isChannelKind(builtins[0]) {
		var chans []discordgo.ChannelType
		for _, b := range builtins {
			if !isChannelKind(b) {
				return nil, false, fmt.Errorf("union mixes channel types with %v", b)
			}
			for _, ct := range channelKinds[b] {
				if !slices.Contains(chans, ct) {
					chans = append(chans, ct)
				}
			}
		}
		return &channelUnion{channels: chans}, false, nil
	}

	for _, b := range builtins {
		if !isUserKind(b) {
			return nil, false, fmt.Errorf("unsupported union member %v", b)
		}
	}
	typ := discordgo.ApplicationCommandOptionMentionable
	if len(builtins) == 2 && slices.Contains(builtins, Member) && slices.Contains(builtins, User) {
		typ = discordgo.ApplicationCommandOptionUser
	}
	return &mentionableUnion{typ: typ, members: builtins}, false, nil
}

// scalarKind classifies a Go value as String, Integer or Number; 0 otherwise.
func scalarKind(v any) Builtin {
	switch v.(type) {
	case string:
		return String
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer
	case float32, float64:
		return Number
	}
	return 0
}
