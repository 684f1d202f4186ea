package appcmd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveOptionWireTypes(t *testing.T) {
	tests := []struct {
		name string
		ann  Annotation
		want discordgo.ApplicationCommandOptionType
	}{
		{"string", String, discordgo.ApplicationCommandOptionString},
		{"integer", Integer, discordgo.ApplicationCommandOptionInteger},
		{"number", Number, discordgo.ApplicationCommandOptionNumber},
		{"boolean", Boolean, discordgo.ApplicationCommandOptionBoolean},
		{"user", User, discordgo.ApplicationCommandOptionUser},
		{"member", Member, discordgo.ApplicationCommandOptionUser},
		{"role", Role, discordgo.ApplicationCommandOptionRole},
		{"mentionable", Mentionable, discordgo.ApplicationCommandOptionMentionable},
		{"attachment", Attachment, discordgo.ApplicationCommandOptionAttachment},
		{"channel", AnyChannel, discordgo.ApplicationCommandOptionChannel},
		{"thread", Thread, discordgo.ApplicationCommandOptionChannel},
		{"range", Range(Integer, 1, 5), discordgo.ApplicationCommandOptionInteger},
		{"literal", Literal("a", "b"), discordgo.ApplicationCommandOptionString},
		{"annotated", Annotated(String, Range(Number, 0, 1)), discordgo.ApplicationCommandOptionNumber},
		{"transformer", upper{}, discordgo.ApplicationCommandOptionString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := deriveOptions("cmd", []Param{{Name: "arg", Type: tt.ann}}, nil, nil)
			require.NoError(t, err)
			require.Len(t, opts, 1)
			assert.Equal(t, tt.want, opts[0].Type)
			assert.True(t, opts[0].Required)

			opts, err = deriveOptions("cmd", []Param{{Name: "arg", Type: tt.ann, Default: Default(nil)}}, nil, nil)
			require.NoError(t, err)
			assert.False(t, opts[0].Required)
		})
	}
}

func TestOptionalIsNotRequired(t *testing.T) {
	for _, ann := range []Annotation{String, Integer, Number, Boolean, User, Member, Role, Mentionable, Attachment, AnyChannel, TextChannel} {
		opts, err := deriveOptions("cmd", []Param{{Name: "arg", Type: Optional(ann)}}, nil, nil)
		require.NoError(t, err, "annotation %v", ann)
		assert.False(t, opts[0].Required, "annotation %v", ann)
		assert.Nil(t, opts[0].Default, "annotation %v", ann)
	}
}

func TestRequiredOptionsComeFirst(t *testing.T) {
	opts, err := deriveOptions("cmd", []Param{
		{Name: "a", Type: String},
		{Name: "b", Type: String, Default: Default("x")},
		{Name: "c", Type: Integer},
		{Name: "d", Type: Optional(Integer)},
	}, nil, nil)
	require.NoError(t, err)

	var names []string
	for _, o := range opts {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"a", "c", "b", "d"}, names)
}

func TestDescribeAndRename(t *testing.T) {
	opts, err := deriveOptions("cmd",
		[]Param{{Name: "who", Type: User}, {Name: "reason", Type: Optional(String)}},
		map[string]string{"who": "The member to warn"},
		map[string]string{"reason": "why"},
	)
	require.NoError(t, err)
	assert.Equal(t, "The member to warn", opts[0].Description)
	assert.Equal(t, placeholderDescription, opts[1].Description)
	assert.Equal(t, "reason", opts[1].Name)
	assert.Equal(t, "why", opts[1].DisplayName)

	_, err = deriveOptions("cmd", []Param{{Name: "who", Type: User}}, map[string]string{"whom": "x"}, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "whom")
}

func TestDeriveOptionErrors(t *testing.T) {
	tests := []struct {
		name   string
		params []Param
		msg    string
	}{
		{"missing type", []Param{{Name: "x"}}, "missing type annotation"},
		{"uppercase", []Param{{Name: "Name", Type: String}}, "lowercase"},
		{"bad characters", []Param{{Name: "a b", Type: String}}, "must be"},
		{"duplicate", []Param{{Name: "x", Type: String}, {Name: "x", Type: Integer}}, "duplicate"},
		{"choices on literal", []Param{{Name: "x", Type: Literal("a"), Choices: []Choice{{Name: "b", Value: "b"}}}}, "already defined"},
		{"choices on user", []Param{{Name: "x", Type: User, Choices: []Choice{{Name: "b", Value: "b"}}}}, "not supported"},
		{"choice of without choices", []Param{{Name: "x", Type: ChoiceOf(String)}}, "requires Param.Choices"},
		{"bad default", []Param{{Name: "x", Type: Integer, Default: Default("1")}}, "invalid default"},
		{"entity default", []Param{{Name: "x", Type: User, Default: Default("42")}}, "invalid default"},
		{"autocomplete on user", []Param{{Name: "x", Type: User, Autocomplete: suggest("a")}}, "autocomplete is not supported"},
		{"autocomplete with choices", []Param{{Name: "x", Type: ChoiceOf(String), Choices: []Choice{{Name: "a", Value: "a"}}, Autocomplete: suggest("a")}}, "mutually exclusive"},
		{"long description", []Param{{Name: "x", Type: String, Description: strings.Repeat("a", 101)}}, "description exceeds"},
		{"none only", []Param{{Name: "x", Type: None}}, "union"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deriveOptions("cmd", tt.params, nil, nil)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDefaultsForCustomTransformersAreNotChecked(t *testing.T) {
	opts, err := deriveOptions("cmd", []Param{{Name: "x", Type: upper{}, Default: Default(42)}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, opts[0].Default)
}

func TestBuiltinDefaultsTakeInboundTypes(t *testing.T) {
	opts, err := deriveOptions("cmd", []Param{
		{Name: "n", Type: Integer, Default: Default(3)},
		{Name: "f", Type: Number, Default: Default(3)},
		{Name: "r", Type: Range(Integer, 1, 5), Default: Default(uint8(2))},
		{Name: "s", Type: String, Default: Default("x")},
		{Name: "u", Type: Optional(User)},
	}, nil, nil)
	require.NoError(t, err)

	got := map[string]any{}
	for _, o := range opts {
		got[o.Name] = o.Default
	}
	assert.Equal(t, map[string]any{"n": int64(3), "f": 3.0, "r": int64(2), "s": "x", "u": nil}, got)
}

func TestRangeBounds(t *testing.T) {
	opts, err := deriveOptions("cmd", []Param{
		{Name: "n", Type: Range(Integer, 1, 5)},
		{Name: "s", Type: Range(String, 2, 10)},
		{Name: "f", Type: AtLeast(Number, 0.5)},
	}, nil, nil)
	require.NoError(t, err)

	n, s, f := opts[0].Wire(), opts[1].Wire(), opts[2].Wire()
	require.NotNil(t, n.MinValue)
	assert.Equal(t, 1.0, *n.MinValue)
	assert.Equal(t, 5.0, n.MaxValue)
	require.NotNil(t, s.MinLength)
	assert.Equal(t, 2, *s.MinLength)
	assert.Equal(t, 10, s.MaxLength)
	assert.Equal(t, 0.5, *f.MinValue)
	assert.Zero(t, f.MaxValue)
}

func TestChoicesAreNormalized(t *testing.T) {
	opts, err := deriveOptions("cmd", []Param{{
		Name:    "sides",
		Type:    ChoiceOf(Integer),
		Choices: []Choice{{Name: "d6", Value: 6}, {Name: "d20", Value: 20}},
	}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []Choice{{Name: "d6", Value: int64(6)}, {Name: "d20", Value: int64(20)}}, opts[0].Choices)

	v, err := opts[0].transformer.Transform(context.Background(), nil, float64(20))
	require.NoError(t, err)
	assert.Equal(t, Choice{Name: "d20", Value: int64(20)}, v)
}

func TestAutocompleteFromTransformer(t *testing.T) {
	opts, err := deriveOptions("cmd", []Param{{Name: "fruit", Type: fruitPicker{}}}, nil, nil)
	require.NoError(t, err)
	assert.True(t, opts[0].Autocomplete)
	require.NotNil(t, opts[0].autocomplete)
}

func TestOptionWireRoundTrip(t *testing.T) {
	cmd := mustCommand(t, CommandSpec{
		Name:        "ping",
		Description: "Ping the bot",
		Params:      []Param{{Name: "times", Type: Range(Integer, 1, 5), Description: "How many pongs"}},
	})
	w := cmd.ToWire()
	require.Len(t, w.Options, 1)

	back := OptionFromWire(w.Options[0])
	diff := cmp.Diff(cmd.Options()[0], back, cmp.AllowUnexported(Option{}), cmp.FilterPath(func(p cmp.Path) bool {
		name := p.Last().String()
		return name == ".transformer" || name == ".autocomplete"
	}, cmp.Ignore()))
	assert.Empty(t, diff)
}

func TestNegativeRangeSurvivesJSON(t *testing.T) {
	_, err := NewCommand(CommandSpec{Name: "temp", Params: []Param{{Name: "c", Type: Range(Integer, -10, 0)}}})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "maximum cannot be 0")

	cmd := mustCommand(t, CommandSpec{
		Name:   "temp",
		Params: []Param{{Name: "c", Type: Range(Integer, -10, -1)}, {Name: "f", Type: AtMost(Number, -0.5)}},
	})
	data, err := json.Marshal(cmd.ToWire())
	require.NoError(t, err)
	var w discordgo.ApplicationCommand
	require.NoError(t, json.Unmarshal(data, &w))
	require.Len(t, w.Options, 2)

	for i, o := range cmd.Options() {
		back := OptionFromWire(w.Options[i])
		require.NotNil(t, back.MaxValue, o.Name)
		assert.Equal(t, *o.MaxValue, *back.MaxValue)
		assert.Equal(t, o.MinValue, back.MinValue)
	}
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "Short text", shorten("Short   text\n\nSecond paragraph"))

	long := strings.Repeat("word ", 40)
	got := shorten(long)
	assert.True(t, strings.HasSuffix(got, placeholderDescription))
	assert.LessOrEqual(t, len([]rune(got)), MaxDescriptionLength)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, placeholderDescription), " "))

	single := strings.Repeat("x", 150)
	assert.Len(t, []rune(shorten(single)), MaxDescriptionLength)
}

// upper is a custom transformer that upper-cases its input.
type upper struct{ BaseTransformer }

func (upper) Transform(_ context.Context, _ *Interaction, v any) (any, error) {
	return strings.ToUpper(v.(string)), nil
}

type fruitPicker struct{ BaseTransformer }

func (fruitPicker) Autocomplete(_ context.Context, _ *Interaction, current any) ([]Choice, error) {
	var out []Choice
	for _, f := range []string{"apple", "banana", "cherry"} {
		if strings.HasPrefix(f, current.(string)) {
			out = append(out, Choice{Name: f, Value: f})
		}
	}
	return out, nil
}

func suggest(values ...string) AutocompleteFunc {
	return func(context.Context, *Interaction, any) ([]Choice, error) {
		out := make([]Choice, len(values))
		for i, v := range values {
			out[i] = Choice{Name: v, Value: v}
		}
		return out, nil
	}
}
