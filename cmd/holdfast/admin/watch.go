// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/authority"
	"github.com/bureau-foundation/holdfast/lib/object"
)

type watchParams struct {
	cli.AdminConnection
	Interval time.Duration `json:"interval" flag:"interval,i" desc:"refresh interval" default:"1s"`
}

// WatchCommand returns "holdfast watch".
func WatchCommand() *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Live view of peers and ownership",
		Description: `Show a continuously refreshing view of the authority: connected peers
with their backlogs, and every object with its owner. Press r to
refresh immediately and q to quit.`,
		Usage: "holdfast watch [--interval <duration>] [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("watch", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Interval <= 0 {
				return cli.Validation("--interval must be positive")
			}
			connection := params.AdminConnection
			model := newWatchModel(func(ctx context.Context) (watchSample, error) {
				return sampleAuthority(ctx, &connection)
			}, params.Interval)
			program := tea.NewProgram(model, tea.WithAltScreen())
			_, err := program.Run()
			return err
		},
	}
}

// watchSample is one poll of the authority.
type watchSample struct {
	Status  authority.Status
	Objects []authority.ObjectInfo
	Taken   time.Time
}

func sampleAuthority(ctx context.Context, connection *cli.AdminConnection) (watchSample, error) {
	var sample watchSample
	if err := connection.Call(ctx, authority.ActionStatus, nil, &sample.Status); err != nil {
		return sample, err
	}
	if err := connection.Call(ctx, authority.ActionObjects, nil, &sample.Objects); err != nil {
		return sample, err
	}
	sample.Taken = time.Now()
	return sample, nil
}

type sampleMsg struct {
	sample watchSample
	err    error
}

type refreshTickMsg struct{}

// watchModel is the bubbletea model behind holdfast watch.
type watchModel struct {
	fetch    func(context.Context) (watchSample, error)
	interval time.Duration

	sample   watchSample
	haveData bool
	err      error
	width    int
}

func newWatchModel(fetch func(context.Context) (watchSample, error), interval time.Duration) watchModel {
	return watchModel{fetch: fetch, interval: interval}
}

func (model watchModel) Init() tea.Cmd {
	return model.poll()
}

// poll fetches a sample off the UI goroutine.
func (model watchModel) poll() tea.Cmd {
	fetch := model.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
		defer cancel()
		sample, err := fetch(ctx)
		return sampleMsg{sample: sample, err: err}
	}
}

func (model watchModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(model.interval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (model watchModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch message.String() {
		case "q", "esc", "ctrl+c":
			return model, tea.Quit
		case "r":
			return model, model.poll()
		}

	case tea.WindowSizeMsg:
		model.width = message.Width

	case sampleMsg:
		model.err = message.err
		if message.err == nil {
			model.sample = message.sample
			model.haveData = true
		}
		return model, model.scheduleRefresh()

	case refreshTickMsg:
		return model, model.poll()
	}
	return model, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	ownedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	bakedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sectionStyle = lipgloss.NewStyle().MarginTop(1)
)

func (model watchModel) View() string {
	var builder strings.Builder

	if !model.haveData {
		if model.err != nil {
			builder.WriteString(errorStyle.Render("error: " + model.err.Error()))
			builder.WriteString("\n")
		} else {
			builder.WriteString(faintStyle.Render("connecting..."))
			builder.WriteString("\n")
		}
		builder.WriteString(faintStyle.Render("q quit"))
		return builder.String()
	}

	status := model.sample.Status
	builder.WriteString(titleStyle.Render(fmt.Sprintf("holdfast %s", status.Version)))
	builder.WriteString(faintStyle.Render(fmt.Sprintf("  protocol %d  digest %s  updated %s",
		status.Protocol, shortDigest(status.Digest), model.sample.Taken.Format(time.TimeOnly))))
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("%d objects, %d lines, %d sockets, %d peers\n",
		status.Objects, status.Lines, status.Sockets, len(status.Peers)))

	builder.WriteString(sectionStyle.Render(headerStyle.Render("Peers")))
	builder.WriteString("\n")
	if len(status.Peers) == 0 {
		builder.WriteString(faintStyle.Render("none"))
		builder.WriteString("\n")
	}
	for _, peer := range status.Peers {
		builder.WriteString(fmt.Sprintf("%-24s %-22s owned %-3d recv %-6d denied %-4d queued %d\n",
			peer.Peer, peer.Remote, peer.Owned, peer.Received, peer.Denied, peer.Queued))
	}

	builder.WriteString(sectionStyle.Render(headerStyle.Render("Objects")))
	builder.WriteString("\n")
	for _, info := range model.sample.Objects {
		row := fmt.Sprintf("%-28s %-6s %-24s", info.ID, info.Kind, orDash(info.Owner.String()))
		switch {
		case info.Kind == object.KindLine && info.Baked:
			row = bakedStyle.Render(row + fmt.Sprintf(" %d points, baked", info.Points))
		case info.Kind == object.KindLine:
			row = ownedStyle.Render(row + fmt.Sprintf(" %d points, drawing", info.Points))
		case !info.Owner.IsZero():
			row = ownedStyle.Render(row)
		}
		builder.WriteString(row)
		builder.WriteString("\n")
	}

	if model.err != nil {
		builder.WriteString("\n")
		builder.WriteString(errorStyle.Render("refresh failed: " + model.err.Error()))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	builder.WriteString(faintStyle.Render("r refresh  q quit"))
	if model.width > 0 {
		return lipgloss.NewStyle().MaxWidth(model.width).Render(builder.String())
	}
	return builder.String()
}
