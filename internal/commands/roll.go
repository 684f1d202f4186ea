package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/commandtree/pkg/appcmd"
)

var diceChoices = []appcmd.Choice{
	{Name: "d4", Value: 4},
	{Name: "d6", Value: 6},
	{Name: "d8", Value: 8},
	{Name: "d10", Value: 10},
	{Name: "d12", Value: 12},
	{Name: "d20", Value: 20},
	{Name: "d100", Value: 100},
}

func rollCommand(intn func(int) int) *appcmd.Command {
	return appcmd.MustCommand(appcmd.CommandSpec{
		Name:        "roll",
		Description: "Roll some dice",
		Params: []appcmd.Param{
			{Name: "sides", Type: appcmd.ChoiceOf(appcmd.Integer), Choices: diceChoices},
			{Name: "count", Type: appcmd.Range(appcmd.Integer, 1, 10), Default: appcmd.Default(int64(1))},
			{Name: "hidden", Type: appcmd.Boolean, Default: appcmd.Default(false)},
		},
		Describe: map[string]string{
			"sides":  "Which die to roll",
			"count":  "How many dice",
			"hidden": "Only show the result to you",
		},
		Callback: appcmd.HandlerFunc(func(_ context.Context, it *appcmd.Interaction, args appcmd.Namespace) error {
			die, _ := args.Choice("sides")
			sides, ok := die.Value.(int64)
			if !ok || sides < 1 {
				return fmt.Errorf("unexpected die %v", die.Value)
			}
			count := min(max(args.Int("count"), 1), 10)
			return it.RespondMessage(rollDice(intn, int(count), int(sides), die.Name), args.Bool("hidden"))
		}),
	})
}

// rollDice renders e.g. "🎲 2d6: [3, 5] = **8**".
func rollDice(intn func(int) int, count, sides int, die string) string {
	rolls := make([]string, count)
	total := 0
	for i := range count {
		v := intn(sides) + 1
		total += v
		rolls[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("🎲 %d%s: [%s] = **%d**", count, die, strings.Join(rolls, ", "), total)
}
