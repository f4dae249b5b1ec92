package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/homecam/internal/gateway"
)

func sampleStatus() gateway.Status {
	return gateway.Status{
		Connectivity:  "associated",
		Address:       "192.168.1.40",
		SourceBound:   true,
		Source:        "10.0.0.2:5003",
		ActiveStreams: 2,
		Servers:       []string{"control", "stream"},
		Version:       "v1.0.0",
	}
}

func TestDashboard_PollRendersStatus(t *testing.T) {
	calls := 0
	m := NewDashboardModel("cam.local", time.Second, func(ctx context.Context) (gateway.Status, error) {
		calls++
		return sampleStatus(), nil
	})

	msg := m.poll()()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd, "a status reply schedules the next tick")
	view := next.(DashboardModel).View()

	assert.Equal(t, 1, calls)
	assert.Contains(t, view, "associated")
	assert.Contains(t, view, "10.0.0.2:5003")
	assert.Contains(t, view, "control, stream")
}

func TestDashboard_FetchErrorKeepsLastStatus(t *testing.T) {
	m := NewDashboardModel("cam.local", time.Second, nil)

	next, _ := m.Update(statusMsg{status: sampleStatus(), at: time.Now()})
	next, _ = next.Update(statusMsg{err: errors.New("connection refused"), at: time.Now()})
	view := next.(DashboardModel).View()

	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "192.168.1.40")
}

func TestDashboard_TickWhileLoadingIsIgnored(t *testing.T) {
	m := NewDashboardModel("cam.local", time.Second, nil)

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestDashboard_Quit(t *testing.T) {
	m := NewDashboardModel("cam.local", time.Second, nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, next.View())
}

func TestRenderStatus_Unbound(t *testing.T) {
	out := RenderStatus(gateway.Status{Connectivity: "provisioning"}, 80)

	assert.Contains(t, out, "provisioning")
	assert.Contains(t, out, "unbound")
	assert.Contains(t, out, "none")
}

func TestRenderResults(t *testing.T) {
	ok := RenderSuccess("Credentials saved", []Detail{{Key: "SSID", Value: "HomeNet"}}, 60)
	assert.Contains(t, ok, "Credentials saved")
	assert.Contains(t, ok, "HomeNet")

	bad := RenderFailure("Resolve failed", errors.New("service not found"), []string{"Check the frame server is powered"}, 60)
	assert.Contains(t, bad, "service not found")
	assert.Contains(t, bad, "Troubleshooting:")
}

func TestStateColor(t *testing.T) {
	assert.Equal(t, SuccessColor, StateColor("associated"))
	assert.Equal(t, WarningColor, StateColor("provisioning"))
	assert.Equal(t, ErrorColor, StateColor("failed"))
	assert.Equal(t, MutedColor, StateColor("disconnected"))
}
