package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"autosubs/internal/media/info"
)

// terminalConfirmer prompts on the terminal for every recommendation.
// Enter accepts the recommended track, a number picks another one, and
// "n" leaves the file untouched.
type terminalConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalConfirmer(in io.Reader, out io.Writer) *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewReader(in), out: out}
}

// stdinIsTerminal reports whether prompts can actually be answered.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *terminalConfirmer) ChooseSubtitle(file info.FileInfo, recommended *info.Track) (int, bool) {
	return c.choose(file, "subtitle", file.Subtitles, recommended)
}

func (c *terminalConfirmer) ChooseAudio(file info.FileInfo, recommended *info.Track) (int, bool) {
	return c.choose(file, "audio", file.Audio, recommended)
}

func (c *terminalConfirmer) ConfirmOverwrite(kind string) bool {
	fmt.Fprintf(c.out, "A different %s selection is already recorded. Replace it? [y/N] ", kind)
	answer, err := c.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (c *terminalConfirmer) choose(file info.FileInfo, kind string, tracks []info.Track, recommended *info.Track) (int, bool) {
	fmt.Fprintf(c.out, "\n%s\n", filepath.Base(file.Path))
	fmt.Fprintln(c.out, c.trackTable(tracks, recommended))
	for _, warning := range file.Warnings {
		fmt.Fprintf(c.out, "note: %s\n", warning)
	}

	for {
		fmt.Fprintf(c.out, "Set %s track %d? [Enter=yes, track number, n=skip] ", kind, recommended.Index)
		answer, err := c.in.ReadString('\n')
		if err != nil {
			return 0, false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		switch {
		case answer == "":
			return recommended.Index, true
		case answer == "n" || answer == "no":
			return 0, false
		default:
			choice, err := strconv.Atoi(answer)
			if err != nil || choice < 0 || choice >= len(tracks) {
				fmt.Fprintf(c.out, "enter a track number between 0 and %d\n", len(tracks)-1)
				continue
			}
			return choice, true
		}
	}
}

// trackTable renders the candidate tracks with the recommended one marked.
func (c *terminalConfirmer) trackTable(tracks []info.Track, recommended *info.Track) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "#", "Language", "Title", "Codec", "Flags"})
	for _, track := range tracks {
		marker := ""
		if recommended != nil && track.Index == recommended.Index {
			marker = ">"
		}
		tw.AppendRow(table.Row{marker, track.Index, track.Language, track.Title, track.Codec, trackFlags(track)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func trackFlags(track info.Track) string {
	var flags []string
	if track.Default {
		flags = append(flags, "default")
	}
	if track.Forced {
		flags = append(flags, "forced")
	}
	if track.Commentary {
		flags = append(flags, "commentary")
	}
	if track.External {
		flags = append(flags, "external")
	}
	if track.IsSDH() {
		flags = append(flags, "sdh")
	}
	return strings.Join(flags, ",")
}
