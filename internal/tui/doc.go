// Package tui implements the interactive devctl dashboard.
//
// The dashboard shows every managed sandbox in a table and keeps it current
// from a watcher subscription:
//
//	w := watcher.New(app.Manager)
//	err := tui.RunDashboard(ctx, app.Manager, w, tui.DashboardOptions{
//	    DefaultImage:     cfg.Image,
//	    DefaultWorkspace: cwd,
//	})
//
// Keys: enter opens the selected sandbox in the editor, c creates, s stops,
// S starts, d removes after confirmation, r refreshes and q quits.
//
// Built on github.com/charmbracelet/bubbletea, bubbles (table, textinput)
// and lipgloss.
package tui
