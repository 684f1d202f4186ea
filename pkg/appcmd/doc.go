// Package appcmd declares Discord application commands, keeps them in a
// per-scope registry and dispatches interactions to them.
//
// Parameters are declared with Param and an Annotation; the package derives
// the wire options, converts inbound values and hands the handler a
// Namespace:
//
//	ping := appcmd.MustCommand(appcmd.CommandSpec{
//	    Name:        "ping",
//	    Description: "Check the bot is alive",
//	    Params: []appcmd.Param{
//	        {Name: "times", Type: appcmd.Range(appcmd.Integer, 1, 5), Default: appcmd.Default(int64(1))},
//	    },
//	    Callback: appcmd.HandlerFunc(func(ctx context.Context, it *appcmd.Interaction, args appcmd.Namespace) error {
//	        return it.RespondMessage(strings.Repeat("pong ", int(args.Int("times"))), false)
//	    }),
//	})
//
//	tree, err := appcmd.NewTree(session, appcmd.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := tree.Add(ping); err != nil {
//	    return err
//	}
//	session.AddHandler(tree.InteractionHandler())
//
// Registration errors surface immediately. Errors at dispatch time go to the
// command's error hook, its nearest group's hook, or the tree's hook, in that
// order; exactly one of them runs.
package appcmd
