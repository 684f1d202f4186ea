package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandtree/internal/storage"
	"github.com/keshon/commandtree/pkg/appcmd"
)

const maxTaskLength = 200

// TaskBoard serves the tasks commands for every guild.
type TaskBoard struct {
	store *storage.Storage
	now   func() time.Time
}

// tasksGroup declares /tasks once with method callbacks and binds it to b.
func tasksGroup(b *TaskBoard) *appcmd.Group {
	g := appcmd.MustGroup(appcmd.GroupSpec{
		Name:        "tasks",
		Description: "Manage your personal task list",
		GuildOnly:   true,
		Checks:      []appcmd.Check{appcmd.GuildOnly()},
	})
	mustNode(g.Command(appcmd.CommandSpec{
		Name:        "add",
		Description: "Add a task",
		Params: []appcmd.Param{
			{Name: "text", Type: appcmd.Range(appcmd.String, 1, maxTaskLength), Description: "What needs doing"},
		},
		Callback: appcmd.Method[*TaskBoard]((*TaskBoard).Add),
	}))
	mustNode(g.Command(appcmd.CommandSpec{
		Name:        "list",
		Description: "Show your tasks",
		Callback:    appcmd.Method[*TaskBoard]((*TaskBoard).List),
	}))
	mustNode(g.Command(appcmd.CommandSpec{
		Name:        "done",
		Description: "Mark a task as done",
		Params: []appcmd.Param{
			{
				Name:         "task",
				Type:         appcmd.AtLeast(appcmd.Integer, 1),
				Description:  "The task to complete",
				Autocomplete: b.suggestOpen,
			},
		},
		Callback: appcmd.Method[*TaskBoard]((*TaskBoard).Done),
	}))
	return g.Bind(b)
}

func mustNode[T appcmd.Node](n T, err error) T {
	if err != nil {
		panic(err)
	}
	return n
}

func (b *TaskBoard) Add(_ context.Context, it *appcmd.Interaction, args appcmd.Namespace) error {
	task, err := b.store.AddTask(it.GuildID, it.User().ID, strings.TrimSpace(args.String("text")), b.now())
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	return it.RespondMessage(fmt.Sprintf("📝 Added task #%d: %s", task.ID, task.Text), true)
}

func (b *TaskBoard) List(_ context.Context, it *appcmd.Interaction, _ appcmd.Namespace) error {
	user := it.User()
	tasks, err := b.store.Tasks(it.GuildID, user.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	return it.RespondEmbed(taskEmbed(user.Username, tasks), true)
}

func (b *TaskBoard) Done(_ context.Context, it *appcmd.Interaction, args appcmd.Namespace) error {
	id := int(args.Int("task"))
	task, err := b.store.CompleteTask(it.GuildID, it.User().ID, id, b.now())
	switch {
	case errors.Is(err, storage.ErrTaskNotFound):
		return it.RespondMessage(fmt.Sprintf("There is no task #%d on your list.", id), true)
	case err != nil && strings.Contains(err.Error(), "already done"):
		return it.RespondMessage(fmt.Sprintf("Task #%d is already done.", id), true)
	case err != nil:
		return fmt.Errorf("complete task: %w", err)
	}
	return it.RespondMessage(fmt.Sprintf("✅ Done: #%d %s", task.ID, task.Text), true)
}

// suggestOpen offers the caller's open tasks whose id or text contains what
// has been typed so far.
func (b *TaskBoard) suggestOpen(_ context.Context, it *appcmd.Interaction, current any) ([]appcmd.Choice, error) {
	if it.GuildID == "" {
		return nil, nil
	}
	tasks, err := b.store.Tasks(it.GuildID, it.User().ID)
	if err != nil {
		return nil, err
	}
	typed := ""
	if current != nil {
		typed = strings.ToLower(strings.TrimSpace(fmt.Sprint(current)))
	}
	var out []appcmd.Choice
	for _, t := range tasks {
		if t.Done() {
			continue
		}
		id := strconv.Itoa(t.ID)
		if typed != "" && !strings.Contains(id, typed) && !strings.Contains(strings.ToLower(t.Text), typed) {
			continue
		}
		out = append(out, appcmd.Choice{Name: clip("#"+id+" "+t.Text, appcmd.MaxDescriptionLength), Value: int64(t.ID)})
	}
	return out, nil
}

func showTasksMenu(b *TaskBoard) *appcmd.ContextMenu {
	menu, err := appcmd.NewUserMenu(appcmd.MenuSpec{
		Name:      "Show tasks",
		GuildOnly: true,
		Checks:    []appcmd.Check{appcmd.GuildOnly()},
	}, func(_ context.Context, it *appcmd.Interaction, user *discordgo.User, _ *discordgo.Member) error {
		tasks, err := b.store.Tasks(it.GuildID, user.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		return it.RespondEmbed(taskEmbed(user.Username, tasks), true)
	})
	if err != nil {
		panic(err)
	}
	return menu
}

func taskEmbed(username string, tasks []storage.Task) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: fmt.Sprintf("Tasks of %s", username)}
	if len(tasks) == 0 {
		embed.Description = "Nothing to do. Enjoy it while it lasts."
		return embed
	}
	var sb strings.Builder
	for _, t := range tasks {
		mark := "⬜"
		if t.Done() {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s #%d %s\n", mark, t.ID, t.Text)
	}
	embed.Description = sb.String()
	return embed
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
