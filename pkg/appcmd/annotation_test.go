package appcmd

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnion(t *testing.T) {
	tests := []struct {
		name     string
		ann      Annotation
		typ      discordgo.ApplicationCommandOptionType
		optional bool
		channels []discordgo.ChannelType
	}{
		{
			name: "user or member",
			ann:  Union(User, Member),
			typ:  discordgo.ApplicationCommandOptionUser,
		},
		{
			name: "user or role",
			ann:  Union(User, Role),
			typ:  discordgo.ApplicationCommandOptionMentionable,
		},
		{
			name:     "optional nested",
			ann:      Optional(Union(Member, Role)),
			typ:      discordgo.ApplicationCommandOptionMentionable,
			optional: true,
		},
		{
			name:     "channels merge",
			ann:      Union(VoiceChannel, StageChannel, VoiceChannel),
			typ:      discordgo.ApplicationCommandOptionChannel,
			channels: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice},
		},
		{
			name: "single member collapses",
			ann:  Union(Integer, Integer),
			typ:  discordgo.ApplicationCommandOptionInteger,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, optional, err := resolveAnnotation(tt.ann)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, tr.Type())
			assert.Equal(t, tt.optional, optional)
			if tt.channels != nil {
				assert.Equal(t, tt.channels, tr.ChannelTypes())
			}
		})
	}
}

func TestResolveUnionErrors(t *testing.T) {
	for name, ann := range map[string]Annotation{
		"mixed channel":    Union(TextChannel, User),
		"scalar members":   Union(String, Integer),
		"only none":        Union(None, None),
		"transform member": Union(upper{}, String),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := resolveAnnotation(ann)
			require.Error(t, err)
		})
	}
}

func TestMentionableUnionRejectsRoleWhenNotDeclared(t *testing.T) {
	tr, _, err := resolveAnnotation(Union(User, Member))
	require.NoError(t, err)

	_, err = tr.Transform(context.Background(), nil, &discordgo.Role{ID: "1"})
	require.Error(t, err)
	got, err := tr.Transform(context.Background(), nil, &discordgo.User{ID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "2", got.(*discordgo.User).ID)
}

func TestEnum(t *testing.T) {
	ctx := context.Background()

	colors := Enum("Color", EnumMember{Name: "red", Value: 1}, EnumMember{Name: "green", Value: 2})
	tr, _, err := resolveAnnotation(colors)
	require.NoError(t, err)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, tr.Type())
	assert.Equal(t, []Choice{{Name: "red", Value: int64(1)}, {Name: "green", Value: int64(2)}}, tr.Choices())

	got, err := tr.Transform(ctx, nil, float64(2))
	require.NoError(t, err)
	assert.Equal(t, EnumMember{Name: "green", Value: 2}, got)
	_, err = tr.Transform(ctx, nil, float64(3))
	require.ErrorContains(t, err, "Color")

	// Mixed member values are keyed by name.
	mixed := Enum("Mode", EnumMember{Name: "fast", Value: 1}, EnumMember{Name: "safe", Value: "s"})
	tr, _, err = resolveAnnotation(mixed)
	require.NoError(t, err)
	assert.Equal(t, discordgo.ApplicationCommandOptionString, tr.Type())
	got, err = tr.Transform(ctx, nil, "safe")
	require.NoError(t, err)
	assert.Equal(t, "s", got.(EnumMember).Value)

	_, _, err = resolveAnnotation(Enum("Empty"))
	require.Error(t, err)
	_, _, err = resolveAnnotation(Enum("Dup", EnumMember{Name: "a", Value: 1}, EnumMember{Name: "a", Value: 2}))
	require.Error(t, err)
}

func TestLiteral(t *testing.T) {
	tr, _, err := resolveAnnotation(Literal(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, tr.Type())
	assert.Len(t, tr.Choices(), 3)

	got, err := tr.Transform(context.Background(), nil, float64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
	_, err = tr.Transform(context.Background(), nil, float64(4))
	require.Error(t, err)

	_, _, err = resolveAnnotation(Literal("a", 1))
	require.ErrorContains(t, err, "share one type")
	_, _, err = resolveAnnotation(Literal(true))
	require.Error(t, err)
}

func TestRangeValidation(t *testing.T) {
	for name, ann := range map[string]Annotation{
		"boolean":        Range(Boolean, 0, 1),
		"inverted":       Range(Integer, 5, 1),
		"fractional int": Range(Integer, 0.5, 2),
		"negative len":   AtLeast(String, -1),
		"zero max int":   Range(Integer, -10, 0),
		"zero max num":   AtMost(Number, 0),
		"zero max len":   Range(String, 0, 0),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := resolveAnnotation(ann)
			require.Error(t, err)
		})
	}

	tr, _, err := resolveAnnotation(AtMost(Number, 2.5))
	require.NoError(t, err)
	lo, hi := tr.Bounds()
	assert.Nil(t, lo)
	require.NotNil(t, hi)
	assert.Equal(t, 2.5, *hi)
}

func TestChannelTransformerChecksType(t *testing.T) {
	tr, _, err := resolveAnnotation(Thread)
	require.NoError(t, err)

	_, err = tr.Transform(context.Background(), nil, &discordgo.Channel{Type: discordgo.ChannelTypeGuildText})
	require.Error(t, err)
	got, err := tr.Transform(context.Background(), nil, &discordgo.Channel{ID: "t", Type: discordgo.ChannelTypeGuildPublicThread})
	require.NoError(t, err)
	assert.Equal(t, "t", got.(*discordgo.Channel).ID)

	// Partial objects pass; there is nothing to check.
	got, err = tr.Transform(context.Background(), nil, Object{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, Object{ID: "x"}, got)
}

func TestNormalizeScalar(t *testing.T) {
	v, err := normalizeScalar(discordgo.ApplicationCommandOptionInteger, float64(12))
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	_, err = normalizeScalar(discordgo.ApplicationCommandOptionInteger, 1.5)
	require.Error(t, err)

	v, err = normalizeScalar(discordgo.ApplicationCommandOptionNumber, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = normalizeScalar(discordgo.ApplicationCommandOptionBoolean, "true")
	require.Error(t, err)
}
