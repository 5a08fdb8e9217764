// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/motion"
	"github.com/Thermoquad/cobraflex/pkg/teleop"
	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	controlTickInterval = 200 * time.Millisecond
	maxLogEntries       = 100
	speedStep           = 50 // per + or - press
	lightStep           = 32 // per [ ] { } press
	meterWidth          = 24
)

//////////////////////////////////////////////////////////////
// Key Map
//////////////////////////////////////////////////////////////

type controlKeyMap struct {
	DriveOnce     key.Binding
	Hold          key.Binding
	Release       key.Binding
	GimbalStep    key.Binding
	GimbalHold    key.Binding
	GimbalRelease key.Binding
	Center        key.Binding
	Preset        key.Binding
	Faster        key.Binding
	Slower        key.Binding
	ChassisLight  key.Binding
	GimbalLight   key.Binding
	Feedback      key.Binding
	StopAll       key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func newControlKeyMap() controlKeyMap {
	return controlKeyMap{
		DriveOnce: key.NewBinding(
			key.WithKeys("h", "j", "k", "l"),
			key.WithHelp("h/j/k/l", "drive once W/N/S/E")),
		Hold: key.NewBinding(
			key.WithKeys("up", "down", "left", "right", "y", "u", "b", "n"),
			key.WithHelp("←↑↓→ yubn", "hold direction")),
		Release: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "release")),
		GimbalStep: key.NewBinding(
			key.WithKeys("H", "J", "K", "L"),
			key.WithHelp("H/J/K/L", "gimbal step")),
		GimbalHold: key.NewBinding(
			key.WithKeys("shift+up", "shift+down", "shift+left", "shift+right"),
			key.WithHelp("shift+←↑↓→", "hold gimbal")),
		GimbalRelease: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "stop gimbal")),
		Center: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "centre gimbal")),
		Preset: key.NewBinding(
			key.WithKeys("1", "2", "3", "4"),
			key.WithHelp("1-4", "speed preset")),
		Faster: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "faster")),
		Slower: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "slower")),
		ChassisLight: key.NewBinding(
			key.WithKeys("[", "]"),
			key.WithHelp("[ ]", "chassis light")),
		GimbalLight: key.NewBinding(
			key.WithKeys("{", "}"),
			key.WithHelp("{ }", "gimbal light")),
		Feedback: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "feedback")),
		StopAll: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop all")),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys")),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k controlKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Hold, k.Release, k.DriveOnce, k.GimbalHold, k.StopAll, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k controlKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Hold, k.Release, k.DriveOnce, k.Preset, k.Faster, k.Slower},
		{k.GimbalHold, k.GimbalRelease, k.GimbalStep, k.Center},
		{k.ChassisLight, k.GimbalLight, k.Feedback},
		{k.StopAll, k.Help, k.Quit},
	}
}

var onceDirections = map[string]wire.Direction{
	"h": wire.West,
	"j": wire.North,
	"k": wire.South,
	"l": wire.East,
}

var holdDirections = map[string]wire.Direction{
	"up":    wire.North,
	"down":  wire.South,
	"left":  wire.West,
	"right": wire.East,
	"y":     wire.NorthWest,
	"u":     wire.NorthEast,
	"b":     wire.SouthWest,
	"n":     wire.SouthEast,
}

// gimbalDelta selects a gimbal step direction by sign.
type gimbalDelta struct {
	pan, tilt int
}

func (d gimbalDelta) String() string {
	switch {
	case d.pan < 0:
		return "PAN LEFT"
	case d.pan > 0:
		return "PAN RIGHT"
	case d.tilt > 0:
		return "TILT UP"
	case d.tilt < 0:
		return "TILT DOWN"
	}
	return "NONE"
}

var gimbalSteps = map[string]gimbalDelta{
	"H": {pan: -1},
	"J": {tilt: 1},
	"K": {tilt: -1},
	"L": {pan: 1},
}

var gimbalHolds = map[string]gimbalDelta{
	"shift+left":  {pan: -1},
	"shift+up":    {tilt: 1},
	"shift+down":  {tilt: -1},
	"shift+right": {pan: 1},
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	controller       *teleop.Controller
	meter            *transport.Meter
	connInfo         string
	feedbackInterval time.Duration

	keys     controlKeyMap
	help     help.Model
	speedBar progress.Model
	lightBar progress.Model

	// Latched holds; terminals do not report key releases
	heldChassis wire.Direction
	heldGimbal  gimbalDelta
	gimbalHeld  bool

	// Refreshed every tick
	state teleop.State
	stats transport.Statistics

	feedback    wire.Feedback
	feedbackAt  time.Time
	hasFeedback bool

	eventLog []logEntry

	// UI state
	width    int
	height   int
	quitting bool
	linkDown bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type feedbackTickMsg time.Time

type feedbackMsg struct {
	feedback wire.Feedback
	err      error
	at       time.Time
}

type lightsMsg struct {
	err error
}

type commandEventMsg teleop.Event

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(c *teleop.Controller, meter *transport.Meter, feedbackInterval time.Duration) *controlModel {
	m := &controlModel{
		controller:       c,
		meter:            meter,
		connInfo:         meter.String(),
		feedbackInterval: feedbackInterval,
		keys:             newControlKeyMap(),
		help:             help.New(),
		speedBar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(meterWidth), progress.WithoutPercentage()),
		lightBar:         progress.New(progress.WithSolidFill("11"), progress.WithWidth(meterWidth), progress.WithoutPercentage()),
		heldChassis:      wire.Stop,
		eventLog:         make([]logEntry, 0, maxLogEntries),
		width:            80,
		height:           24,
	}
	m.refresh()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m *controlModel) Init() tea.Cmd {
	cmds := []tea.Cmd{controlTickCmd(), m.feedbackCmd()}
	if m.feedbackInterval > 0 {
		cmds = append(cmds, feedbackTickCmd(m.feedbackInterval))
	}
	return tea.Batch(cmds...)
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(controlTickInterval, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func feedbackTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return feedbackTickMsg(t)
	})
}

func (m *controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case controlTickMsg:
		m.refresh()
		return m, controlTickCmd()

	case feedbackTickMsg:
		return m, tea.Batch(m.feedbackCmd(), feedbackTickCmd(m.feedbackInterval))

	case feedbackMsg:
		if msg.err != nil {
			if !m.linkDown {
				m.addLogEntry(fmt.Sprintf("Feedback failed: %v", msg.err), true)
			}
			return m, nil
		}
		m.feedback = msg.feedback
		m.feedbackAt = msg.at
		m.hasFeedback = true

	case lightsMsg:
		if msg.err != nil && !m.linkDown {
			m.addLogEntry(fmt.Sprintf("Light command failed: %v", msg.err), true)
		}

	case commandEventMsg:
		m.handleCommandEvent(teleop.Event(msg))
	}

	return m, nil
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	c := m.controller

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.StopAll):
		c.StopAll()
		m.heldChassis = wire.Stop
		m.gimbalHeld = false
		m.addLogEntry("Stop all", false)

	case key.Matches(msg, m.keys.DriveOnce):
		dir := onceDirections[k]
		c.DriveOnce(dir)
		m.heldChassis = wire.Stop
		m.addLogEntry(fmt.Sprintf("Drive %s once at %d", dir, c.SpeedLevel()), false)

	case key.Matches(msg, m.keys.Hold):
		dir := holdDirections[k]
		if dir == m.heldChassis {
			// Key auto-repeat; restarting would restart the ramp
			return m, nil
		}
		c.HoldChassis(dir)
		m.heldChassis = dir
		m.addLogEntry(fmt.Sprintf("Hold %s", dir), false)

	case key.Matches(msg, m.keys.Release):
		c.ReleaseChassis()
		m.heldChassis = wire.Stop
		m.addLogEntry("Release chassis", false)

	case key.Matches(msg, m.keys.GimbalStep):
		d := gimbalSteps[k]
		c.StepGimbal(d.pan, d.tilt)
		m.gimbalHeld = false

	case key.Matches(msg, m.keys.GimbalHold):
		d := gimbalHolds[k]
		if m.gimbalHeld && d == m.heldGimbal {
			return m, nil
		}
		c.HoldGimbal(d.pan, d.tilt)
		m.heldGimbal = d
		m.gimbalHeld = true
		m.addLogEntry(fmt.Sprintf("Hold gimbal %s", d), false)

	case key.Matches(msg, m.keys.GimbalRelease):
		c.ReleaseGimbal()
		m.gimbalHeld = false
		m.addLogEntry("Stop gimbal", false)

	case key.Matches(msg, m.keys.Center):
		c.CenterGimbal()
		m.gimbalHeld = false
		m.addLogEntry("Centre gimbal", false)

	case key.Matches(msg, m.keys.Preset):
		preset := motion.PresetLevelOne + motion.SpeedPreset(k[0]-'1')
		level := c.SetSpeedPreset(preset)
		m.addLogEntry(fmt.Sprintf("Speed preset %s: %d", k, level), false)

	case key.Matches(msg, m.keys.Faster):
		m.addLogEntry(fmt.Sprintf("Speed %d", c.AdjustSpeedLevel(speedStep)), false)

	case key.Matches(msg, m.keys.Slower):
		m.addLogEntry(fmt.Sprintf("Speed %d", c.AdjustSpeedLevel(-speedStep)), false)

	case key.Matches(msg, m.keys.ChassisLight):
		return m, m.lightsCmd(lightDelta(k), 0)

	case key.Matches(msg, m.keys.GimbalLight):
		return m, m.lightsCmd(0, lightDelta(k))

	case key.Matches(msg, m.keys.Feedback):
		return m, m.feedbackCmd()
	}

	m.refresh()
	return m, nil
}

func lightDelta(k string) int {
	if k == "[" || k == "{" {
		return -lightStep
	}
	return lightStep
}

// handleCommandEvent tracks the link state. Only link transitions are logged;
// a dead link would otherwise flood the log at the gimbal rate.
func (m *controlModel) handleCommandEvent(ev teleop.Event) {
	if ev.Err != nil {
		if !m.linkDown {
			m.linkDown = true
			m.addLogEntry(fmt.Sprintf("Link lost (%s): %v", ev.Source, ev.Err), true)
		}
		return
	}
	if m.linkDown {
		m.linkDown = false
		m.addLogEntry("Link restored", false)
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// Lights and feedback are sent synchronously by the controller, so they run
// as tea.Cmds off the update loop.

func (m *controlModel) lightsCmd(dChassis, dGimbal int) tea.Cmd {
	c := m.controller
	return func() tea.Msg {
		return lightsMsg{err: c.AdjustLights(context.Background(), dChassis, dGimbal)}
	}
}

func (m *controlModel) feedbackCmd() tea.Cmd {
	c := m.controller
	return func() tea.Msg {
		fb, err := c.Feedback(context.Background())
		return feedbackMsg{feedback: fb, err: err, at: time.Now()}
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("10"))
)

func (m *controlModel) View() string {
	if m.quitting {
		return "Stopping robot...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("COBRAFLEX TELEOP"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.linkDown {
		connStatus = warningStyle.Render("LINK DOWN - RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit ?=keys", connStatus)))
	s.WriteString("\n\n")

	// Panels
	chassis := m.renderChassisPanel()
	gimbal := m.renderGimbalPanel()
	lights := m.renderLightsPanel()
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chassis, " ", gimbal, " ", lights))
	s.WriteString("\n")

	s.WriteString(m.renderFeedbackBar())
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) renderChassisPanel() string {
	ch := m.state.Chassis
	maxSpeed := m.controller.Codec().Policy().MaxSpeed

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("CHASSIS"))
	s.WriteString("\n")
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Direction:"), statsValueStyle.Render(ch.Direction.String()))
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Phase:"), statsValueStyle.Render(ch.Phase.String()))
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Speed:"), statsValueStyle.Render(fmt.Sprintf("%d / %d", ch.SpeedLevel, maxSpeed)))
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", ch.LastSent)))
	s.WriteString(m.speedBar.ViewAs(fraction(ch.LastSent, maxSpeed)))

	style := boxStyle
	if m.heldChassis != wire.Stop {
		style = activeBoxStyle
		s.WriteString("\n")
		s.WriteString(warningStyle.Render("HOLD " + m.heldChassis.String()))
	}
	return style.Width(meterWidth + 4).Render(s.String())
}

func (m *controlModel) renderGimbalPanel() string {
	pos := m.state.Gimbal

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("GIMBAL"))
	s.WriteString("\n")
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Pan:"), statsValueStyle.Render(fmt.Sprintf("%4d°", pos.Pan)))
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Tilt:"), statsValueStyle.Render(fmt.Sprintf("%4d°", pos.Tilt)))
	s.WriteString(m.speedBar.ViewAs(fraction(pos.Pan-wire.PanMin, wire.PanMax-wire.PanMin)))
	s.WriteString("\n")
	s.WriteString(m.speedBar.ViewAs(fraction(pos.Tilt-wire.TiltMin, wire.TiltMax-wire.TiltMin)))

	style := boxStyle
	if m.gimbalHeld {
		style = activeBoxStyle
		s.WriteString("\n")
		s.WriteString(warningStyle.Render("HOLD " + m.heldGimbal.String()))
	}
	return style.Width(meterWidth + 4).Render(s.String())
}

func (m *controlModel) renderLightsPanel() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("LIGHTS"))
	s.WriteString("\n")
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Chassis:"), statsValueStyle.Render(fmt.Sprintf("%3d", m.state.ChassisLight)))
	s.WriteString(m.lightBar.ViewAs(fraction(m.state.ChassisLight, wire.BrightnessMax)))
	s.WriteString("\n")
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Gimbal:"), statsValueStyle.Render(fmt.Sprintf("%3d", m.state.GimbalLight)))
	s.WriteString(m.lightBar.ViewAs(fraction(m.state.GimbalLight, wire.BrightnessMax)))
	return boxStyle.Width(meterWidth + 4).Render(s.String())
}

func (m *controlModel) renderFeedbackBar() string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("FEEDBACK"))
	content.WriteString(" | ")

	if !m.hasFeedback {
		content.WriteString(headerStyle.Render("No feedback yet"))
		return boxStyle.Width(m.contentWidth()).Render(content.String())
	}

	fb := m.feedback
	fmt.Fprintf(&content, "%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("L:"), statsValueStyle.Render(fmt.Sprintf("%.2f", fb.Left)),
		statsLabelStyle.Render("R:"), statsValueStyle.Render(fmt.Sprintf("%.2f", fb.Right)),
		statsLabelStyle.Render("Odo:"), statsValueStyle.Render(fmt.Sprintf("%d/%d cm", fb.OdometerLeft, fb.OdometerRight)),
		statsLabelStyle.Render("Battery:"), statsValueStyle.Render(fmt.Sprintf("%.2fV", fb.Volts())))
	content.WriteString(headerStyle.Render(fmt.Sprintf("  (%s ago)", formatElapsed(time.Since(m.feedbackAt)))))

	return boxStyle.Width(m.contentWidth()).Render(content.String())
}

func (m *controlModel) renderStatisticsBar() string {
	stats := m.stats
	var deliveredPercent float64
	if stats.TotalCommands > 0 {
		deliveredPercent = float64(stats.Delivered) * 100.0 / float64(stats.TotalCommands)
	}

	failed := statsValueStyle.Render("0")
	if stats.Failed > 0 {
		failed = errorStyle.Render(fmt.Sprintf("%d", stats.Failed))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalCommands)),
		statsLabelStyle.Render("Delivered:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", deliveredPercent)),
		statsLabelStyle.Render("Failed:"), failed,
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f cmd/s", stats.CommandRate)),
	)

	return boxStyle.Width(m.contentWidth()).Render(content)
}

func (m *controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	// Calculate available height for log
	logHeight := m.height - 24
	if logHeight < 3 {
		logHeight = 3
	}
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			fmt.Fprintf(&s, "%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format(eventTimeFormat)),
				style.Render(icon),
				entry.message)
		}
	}

	return boxStyle.Width(m.contentWidth()).Render(strings.TrimSuffix(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// refresh copies the controller state and statistics for rendering.
func (m *controlModel) refresh() {
	m.state = m.controller.State()
	m.stats = m.meter.Statistics()
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *controlModel) contentWidth() int {
	if m.width < 40 {
		return 36
	}
	return m.width - 4
}

// fraction returns v/total clamped to [0, 1].
func fraction(v, total int) float64 {
	if total <= 0 || v <= 0 {
		return 0
	}
	if v >= total {
		return 1
	}
	return float64(v) / float64(total)
}
