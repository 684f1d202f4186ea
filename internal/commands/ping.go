package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/commandtree/pkg/appcmd"
)

func pingCommand(latency func() time.Duration) *appcmd.Command {
	return appcmd.MustCommand(appcmd.CommandSpec{
		Name:        "ping",
		Description: "Check that the bot is alive",
		Callback: appcmd.HandlerFunc(func(_ context.Context, it *appcmd.Interaction, _ appcmd.Namespace) error {
			return it.RespondMessage(fmt.Sprintf("🏓 Pong! Response time: `%dms`", latency().Milliseconds()), false)
		}),
	})
}
