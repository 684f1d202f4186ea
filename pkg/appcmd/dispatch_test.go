package appcmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures what reached the error and completion hooks.
type recorder struct {
	mu        sync.Mutex
	errs      []error
	completed []string
}

func (r *recorder) onError(_ context.Context, _ *Interaction, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) onCompletion(_ context.Context, _ *Interaction, cmd AppCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, cmd.Name())
}

func (r *recorder) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func newRecordedTree(t *testing.T, opts ...TreeOption) (*Tree, *fakeTransport, *recorder) {
	t.Helper()
	tree, client := newTestTree(t, opts...)
	rec := &recorder{}
	tree.OnError(rec.onError)
	tree.OnCompletion(rec.onCompletion)
	return tree, client, rec
}

func TestDispatchNestedPath(t *testing.T) {
	tree, _, rec := newRecordedTree(t)

	var got Namespace
	root := mustGroup(t, "parent")
	mid, err := root.Subgroup(GroupSpec{Name: "mid", Description: "middle"})
	require.NoError(t, err)
	_, err = mid.Command(CommandSpec{
		Name:   "child",
		Params: []Param{{Name: "title", Type: String}, {Name: "count", Type: Optional(Integer)}},
		Callback: HandlerFunc(func(_ context.Context, _ *Interaction, args Namespace) error {
			got = args
			return nil
		}),
	})
	require.NoError(t, err)
	_, err = root.Command(CommandSpec{Name: "other", Params: []Param{{Name: "flag", Type: Boolean}}, Callback: noop})
	require.NoError(t, err)
	require.NoError(t, tree.Add(root))

	raw := chatInteraction("", "parent", groupOpt("mid", subOpt("child",
		valueOpt("title", discordgo.ApplicationCommandOptionString, "hello"),
	)))
	require.NoError(t, tree.Dispatch(context.Background(), raw))

	require.NoError(t, rec.lastErr())
	assert.Equal(t, Namespace{"title": "hello", "count": nil}, got)
	assert.Equal(t, []string{"child"}, rec.completed)
}

func TestDispatchRangeIsDescriptive(t *testing.T) {
	tree, _, rec := newRecordedTree(t)

	var n any
	cmd := mustCommand(t, CommandSpec{
		Name:   "cmd",
		Params: []Param{{Name: "n", Type: Range(Integer, 1, 5)}},
		Callback: HandlerFunc(func(_ context.Context, _ *Interaction, args Namespace) error {
			n = args.Value("n")
			return nil
		}),
	})
	require.NoError(t, tree.Add(cmd))

	o := cmd.Options()[0]
	require.NotNil(t, o.MinValue)
	require.NotNil(t, o.MaxValue)
	assert.Equal(t, 1.0, *o.MinValue)
	assert.Equal(t, 5.0, *o.MaxValue)

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "cmd", valueOpt("n", discordgo.ApplicationCommandOptionInteger, float64(7)))))
	require.NoError(t, rec.lastErr())
	assert.Equal(t, int64(7), n)
}

func TestDispatchOmittedOptionsUseTypedDefaults(t *testing.T) {
	tree, _, rec := newRecordedTree(t)

	var count int64
	var ratio float64
	cmd := mustCommand(t, CommandSpec{
		Name: "cmd",
		Params: []Param{
			{Name: "count", Type: Integer, Default: Default(3)},
			{Name: "ratio", Type: Number, Default: Default(2)},
		},
		Callback: HandlerFunc(func(_ context.Context, _ *Interaction, args Namespace) error {
			count, ratio = args.Int("count"), args.Float("ratio")
			return nil
		}),
	})
	require.NoError(t, tree.Add(cmd))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "cmd")))
	require.NoError(t, rec.lastErr())
	assert.Equal(t, int64(3), count)
	assert.Equal(t, 2.0, ratio)

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "cmd", valueOpt("count", discordgo.ApplicationCommandOptionInteger, float64(7)))))
	require.NoError(t, rec.lastErr())
	assert.Equal(t, int64(7), count)
}

func TestDispatchHandlerErrorGoesToLocalHook(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	boom := errors.New("boom")

	var local error
	cmd := mustCommand(t, CommandSpec{
		Name:     "fail",
		Callback: HandlerFunc(func(context.Context, *Interaction, Namespace) error { return boom }),
		OnError:  func(_ context.Context, _ *Interaction, err error) { local = err },
	})
	require.NoError(t, tree.Add(cmd))
	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "fail")))

	var invokeErr *CommandInvokeError
	require.ErrorAs(t, local, &invokeErr)
	require.ErrorIs(t, local, boom)
	var mismatch *CommandSignatureMismatchError
	assert.False(t, errors.As(local, &mismatch))
	assert.Empty(t, rec.errs, "tree hook must not run when a local hook handled the error")
	assert.Empty(t, rec.completed)
}

func TestDispatchGroupHookCatchesChildErrors(t *testing.T) {
	tree, _, rec := newRecordedTree(t)

	var groupErr error
	g, err := NewGroup(GroupSpec{
		Name:        "tasks",
		Description: "Task commands",
		OnError:     func(_ context.Context, _ *Interaction, err error) { groupErr = err },
	})
	require.NoError(t, err)
	_, err = g.Command(CommandSpec{
		Name:     "add",
		Callback: HandlerFunc(func(context.Context, *Interaction, Namespace) error { return errors.New("nope") }),
	})
	require.NoError(t, err)
	require.NoError(t, tree.Add(g))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "tasks", subOpt("add"))))
	require.Error(t, groupErr)
	assert.Empty(t, rec.errs)
}

func TestDispatchPanicIsInvokeError(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{
		Name:     "panic",
		Callback: HandlerFunc(func(context.Context, *Interaction, Namespace) error { panic("kaboom") }),
	})))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "panic")))
	var invokeErr *CommandInvokeError
	require.ErrorAs(t, rec.lastErr(), &invokeErr)
	assert.Contains(t, invokeErr.Error(), "kaboom")
}

func TestDispatchResolutionErrors(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	g := mustGroup(t, "tasks")
	_, err := g.Command(CommandSpec{Name: "add", Params: []Param{{Name: "title", Type: String}}, Callback: noop})
	require.NoError(t, err)
	require.NoError(t, tree.Add(g))

	tests := []struct {
		name  string
		raw   *discordgo.Interaction
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown root",
			raw:  chatInteraction("", "missing"),
			check: func(t *testing.T, err error) {
				var nf *CommandNotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "missing", nf.Name)
			},
		},
		{
			name: "unknown child",
			raw:  chatInteraction("", "tasks", subOpt("remove")),
			check: func(t *testing.T, err error) {
				var nf *CommandNotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, []string{"tasks"}, nf.Parents)
			},
		},
		{
			name: "group without subcommand",
			raw:  chatInteraction("", "tasks"),
			check: func(t *testing.T, err error) {
				var mm *CommandSignatureMismatchError
				require.ErrorAs(t, err, &mm)
			},
		},
		{
			name: "missing required option",
			raw:  chatInteraction("", "tasks", subOpt("add")),
			check: func(t *testing.T, err error) {
				var mm *CommandSignatureMismatchError
				require.ErrorAs(t, err, &mm)
				assert.Contains(t, mm.Reason, "title")
			},
		},
		{
			name: "unknown option",
			raw: chatInteraction("", "tasks", subOpt("add",
				valueOpt("title", discordgo.ApplicationCommandOptionString, "x"),
				valueOpt("due", discordgo.ApplicationCommandOptionString, "tomorrow"),
			)),
			check: func(t *testing.T, err error) {
				var mm *CommandSignatureMismatchError
				require.ErrorAs(t, err, &mm)
				assert.Contains(t, mm.Reason, "due")
			},
		},
		{
			name: "wrong value type",
			raw:  chatInteraction("", "tasks", subOpt("add", valueOpt("title", discordgo.ApplicationCommandOptionString, 12.0))),
			check: func(t *testing.T, err error) {
				var te *TransformerError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, 12.0, te.Value)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tree.Dispatch(context.Background(), tt.raw))
			tt.check(t, rec.lastErr())
		})
	}
	assert.Empty(t, rec.completed)
}

func TestDispatchFallbackToGlobal(t *testing.T) {
	tree, client, rec := newRecordedTree(t, WithFallbackToGlobal(true))
	respond := func(msg string) Callback {
		return HandlerFunc(func(_ context.Context, it *Interaction, _ Namespace) error {
			return it.RespondMessage(msg, true)
		})
	}
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{Name: "ping", Callback: respond("global")})))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("g1", "ping")))
	assert.Equal(t, "global", client.lastResponse().Data.Content)

	// A guild group that does not know the child never borrows the global one.
	guildGroup := mustGroup(t, "tasks")
	_, err := guildGroup.Command(CommandSpec{Name: "add", Callback: respond("guild add")})
	require.NoError(t, err)
	globalGroup := mustGroup(t, "tasks")
	_, err = globalGroup.Command(CommandSpec{Name: "list", Callback: respond("global list")})
	require.NoError(t, err)
	require.NoError(t, tree.Add(guildGroup, Guilds("g1")))
	require.NoError(t, tree.Add(globalGroup))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("g1", "tasks", subOpt("list"))))
	assert.Equal(t, "global list", client.lastResponse().Data.Content)
	require.NoError(t, rec.lastErr())

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("g1", "tasks", subOpt("add"))))
	assert.Equal(t, "guild add", client.lastResponse().Data.Content)
}

func TestDispatchWithoutFallback(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{Name: "ping"})))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("g1", "ping")))
	var nf *CommandNotFoundError
	require.ErrorAs(t, rec.lastErr(), &nf)
}

func TestDispatchChecks(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	ran := false
	g, err := NewGroup(GroupSpec{Name: "admin", Description: "Admin", Checks: []Check{HasPermissions(discordgo.PermissionManageGuild)}})
	require.NoError(t, err)
	_, err = g.Command(CommandSpec{Name: "purge", Callback: HandlerFunc(func(context.Context, *Interaction, Namespace) error {
		ran = true
		return nil
	})})
	require.NoError(t, err)
	require.NoError(t, tree.Add(g))

	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("g1", "admin", subOpt("purge"))))
	var cf *CheckFailureError
	require.ErrorAs(t, rec.lastErr(), &cf)
	var missing *MissingPermissionsError
	require.ErrorAs(t, rec.lastErr(), &missing)
	assert.Equal(t, "missing permissions: Manage Server", missing.Error())
	assert.False(t, ran)

	raw := chatInteraction("g1", "admin", subOpt("purge"))
	raw.Member.Permissions = discordgo.PermissionAdministrator
	require.NoError(t, tree.Dispatch(context.Background(), raw))
	assert.True(t, ran)

	tree.SetInteractionCheck(GuildOnly())
	ran = false
	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "admin", subOpt("purge"))))
	require.ErrorIs(t, rec.lastErr(), ErrNoPrivateMessage)
	assert.False(t, ran)
}

func TestDispatchEntityOptions(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	var got Namespace
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{
		Name: "inspect",
		Params: []Param{
			{Name: "member", Type: Member},
			{Name: "channel", Type: TextChannel},
			{Name: "role", Type: Optional(Role)},
		},
		Callback: HandlerFunc(func(_ context.Context, _ *Interaction, args Namespace) error {
			got = args
			return nil
		}),
	})))

	raw := chatInteraction("g1", "inspect",
		valueOpt("member", discordgo.ApplicationCommandOptionUser, "7"),
		valueOpt("channel", discordgo.ApplicationCommandOptionChannel, "9"),
		valueOpt("role", discordgo.ApplicationCommandOptionRole, "11"),
	)
	data := raw.Data.(discordgo.ApplicationCommandInteractionData)
	data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{
		Users:    map[string]*discordgo.User{"7": {ID: "7", Username: "alice"}},
		Members:  map[string]*discordgo.Member{"7": {Nick: "al"}},
		Channels: map[string]*discordgo.Channel{"9": {ID: "9", Type: discordgo.ChannelTypeGuildText}},
	}
	raw.Data = data

	require.NoError(t, tree.Dispatch(context.Background(), raw))
	require.NoError(t, rec.lastErr())
	require.NotNil(t, got.Member("member"))
	assert.Equal(t, "alice", got.Member("member").User.Username)
	assert.Equal(t, "g1", got.Member("member").GuildID)
	assert.Equal(t, "9", got.Channel("channel").ID)
	assert.Equal(t, Object{ID: "11"}, got.Value("role"))
	assert.Equal(t, "11", got.ID("role"))

	// A voice channel is rejected by a text channel parameter.
	data.Resolved.Channels["9"].Type = discordgo.ChannelTypeGuildVoice
	require.NoError(t, tree.Dispatch(context.Background(), raw))
	var te *TransformerError
	require.ErrorAs(t, rec.lastErr(), &te)
}

func TestDispatchAutocomplete(t *testing.T) {
	tree, client, rec := newRecordedTree(t)
	many := make([]string, 30)
	for i := range many {
		many[i] = fmt.Sprintf("item%02d", i)
	}
	called := false
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{
		Name:   "pick",
		Params: []Param{{Name: "item", Type: String, Autocomplete: suggest(many...)}, {Name: "fruit", Type: Optional(fruitPicker{})}},
		Callback: HandlerFunc(func(context.Context, *Interaction, Namespace) error {
			called = true
			return nil
		}),
	})))

	raw := chatInteraction("", "pick", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "item", Type: discordgo.ApplicationCommandOptionString, Value: "it", Focused: true,
	})
	raw.Type = discordgo.InteractionApplicationCommandAutocomplete
	require.NoError(t, tree.Dispatch(context.Background(), raw))

	require.NoError(t, rec.lastErr())
	assert.False(t, called)
	assert.Empty(t, rec.completed)
	resp := client.lastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, discordgo.InteractionApplicationCommandAutocompleteResult, resp.Type)
	assert.Len(t, resp.Data.Choices, MaxChoices)

	raw = chatInteraction("", "pick",
		valueOpt("item", discordgo.ApplicationCommandOptionString, "x"),
		&discordgo.ApplicationCommandInteractionDataOption{Name: "fruit", Type: discordgo.ApplicationCommandOptionString, Value: "ba", Focused: true},
	)
	raw.Type = discordgo.InteractionApplicationCommandAutocomplete
	require.NoError(t, tree.Dispatch(context.Background(), raw))
	resp = client.lastResponse()
	require.Len(t, resp.Data.Choices, 1)
	assert.Equal(t, "banana", resp.Data.Choices[0].Value)
}

func TestDispatchContextMenus(t *testing.T) {
	tree, _, rec := newRecordedTree(t, WithFallbackToGlobal(true))

	var gotUser *discordgo.User
	var gotMember *discordgo.Member
	userMenu, err := NewUserMenu(MenuSpec{Name: "Inspect"}, func(_ context.Context, _ *Interaction, u *discordgo.User, m *discordgo.Member) error {
		gotUser, gotMember = u, m
		return nil
	})
	require.NoError(t, err)
	var gotMsg *discordgo.Message
	msgMenu, err := NewMessageMenu(MenuSpec{Name: "Quote"}, func(_ context.Context, _ *Interaction, m *discordgo.Message) error {
		gotMsg = m
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, tree.Add(userMenu))
	require.NoError(t, tree.Add(msgMenu, Guilds("g1")))

	menuInteraction := func(guild, name string, typ discordgo.ApplicationCommandType, target string, res *discordgo.ApplicationCommandInteractionDataResolved) *discordgo.Interaction {
		return &discordgo.Interaction{
			ID:      "2",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guild,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: name, CommandType: typ, TargetID: target, Resolved: res,
			},
		}
	}

	res := &discordgo.ApplicationCommandInteractionDataResolved{
		Users:    map[string]*discordgo.User{"5": {ID: "5"}},
		Members:  map[string]*discordgo.Member{"5": {Nick: "five"}},
		Messages: map[string]*discordgo.Message{"8": {ID: "8", Content: "quote me"}},
	}

	// Found through the global fallback.
	require.NoError(t, tree.Dispatch(context.Background(), menuInteraction("g1", "Inspect", discordgo.UserApplicationCommand, "5", res)))
	require.NoError(t, rec.lastErr())
	assert.Equal(t, "5", gotUser.ID)
	assert.Equal(t, "five", gotMember.Nick)

	require.NoError(t, tree.Dispatch(context.Background(), menuInteraction("g1", "Quote", discordgo.MessageApplicationCommand, "8", res)))
	assert.Equal(t, "quote me", gotMsg.Content)
	assert.Equal(t, []string{"Inspect", "Quote"}, rec.completed)

	// Not registered globally.
	require.NoError(t, tree.Dispatch(context.Background(), menuInteraction("", "Quote", discordgo.MessageApplicationCommand, "8", res)))
	var nf *CommandNotFoundError
	require.ErrorAs(t, rec.lastErr(), &nf)

	// Missing target is malformed data and is returned, not routed to hooks.
	errCount := len(rec.errs)
	err = tree.Dispatch(context.Background(), menuInteraction("g1", "Quote", discordgo.MessageApplicationCommand, "404", res))
	var dataErr *InteractionDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Len(t, rec.errs, errCount)
}

func TestDispatchCancellation(t *testing.T) {
	tree, _, rec := newRecordedTree(t)
	started := make(chan struct{})
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{
		Name: "slow",
		Callback: HandlerFunc(func(ctx context.Context, _ *Interaction, _ Namespace) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}),
	})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Dispatch(ctx, chatInteraction("", "slow")) }()
	<-started
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch did not return after cancellation")
	}
	assert.Empty(t, rec.errs)
	assert.Empty(t, rec.completed)
}

func TestHandleRunsInBackground(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tree, client, rec := newRecordedTree(t, WithLogger(zap.New(core)))
	require.NoError(t, tree.Add(mustCommand(t, CommandSpec{
		Name: "ping",
		Callback: HandlerFunc(func(_ context.Context, it *Interaction, _ Namespace) error {
			return it.RespondMessage("pong", false)
		}),
	})))

	tree.InteractionHandler()(nil, &discordgo.InteractionCreate{Interaction: chatInteraction("", "ping")})
	tree.Handle(&discordgo.Interaction{Type: discordgo.InteractionMessageComponent})

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.completed) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "pong", client.lastResponse().Data.Content)
	tree.jobs.Wait()
	assert.NotZero(t, logs.FilterMessage("interaction job").Len())
}

func TestDefaultErrorHookLogs(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	tree, _ := newTestTree(t, WithLogger(zap.New(core)))
	require.NoError(t, tree.Dispatch(context.Background(), chatInteraction("", "ghost")))

	entries := logs.FilterMessage("ignoring error in command").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "ghost")
}
