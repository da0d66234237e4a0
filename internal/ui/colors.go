package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/portage/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

// statusStyle maps an item decision to the palette entry used for notices.
func (p *Palette) statusStyle(status models.ItemStatus) lipgloss.Style {
	switch status {
	case models.ItemMatched, models.ItemInserted:
		return p.ok
	case models.ItemUncertain:
		return p.warn
	case models.ItemNotFound, models.ItemFailed:
		return p.err
	default:
		return p.help
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
