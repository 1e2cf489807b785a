package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"genstudio/internal/studio"
)

const sessionHelp = `Type an edit prompt to apply it to the source image.
Commands:
  :undo         step back
  :redo         step forward
  :show         describe the current image
  :write PATH   write the current image to PATH
  :save         record the current image in history
  :quit         leave the session
`

// RunEditSession drives an interactive edit session on the image at rawPath.
// Every prompt line asks for an edit of the source image; results form an
// undo/redo stack. Nothing is recorded in history until :save.
func (a *StudioApp) RunEditSession(ctx context.Context, rawPath string, in io.Reader, out io.Writer) error {
	a.op.Parameters = rawPath
	source, err := a.LoadImage(rawPath)
	if err != nil {
		return a.track(err)
	}

	session := studio.NewEditSession()
	session.Start(source)
	// prompts[i] produced state i of the session; state 0 is the source.
	prompts := []string{""}

	fmt.Fprint(out, sessionHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "[%d/%d]> ", session.Cursor()+1, session.Len())
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "":
			continue
		case ":quit", ":q":
			return nil
		case ":help":
			fmt.Fprint(out, sessionHelp)
		case ":undo":
			if !session.Undo() {
				fmt.Fprintln(out, "Nothing to undo.")
			}
		case ":redo":
			if !session.Redo() {
				fmt.Fprintln(out, "Nothing to redo.")
			}
		case ":show":
			img, _ := session.Current()
			fmt.Fprintf(out, "%s  %s  %d bytes  prompt: %q\n",
				img.Checksum()[:12], img.MimeType, len(img.Data), prompts[session.Cursor()])
		case ":write":
			if err := writeImage(session, strings.TrimSpace(arg)); err != nil {
				fmt.Fprintf(out, "Write failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Wrote %s\n", strings.TrimSpace(arg))
		case ":save":
			if session.Cursor() == 0 {
				fmt.Fprintln(out, "Nothing to save: the current image is the source.")
				continue
			}
			img, _ := session.Current()
			entry, err := a.service.RecordEdit(ctx, prompts[session.Cursor()], source, img)
			if err != nil {
				return a.track(err)
			}
			fmt.Fprintf(out, "Saved as history entry %s\n", entry.ID)
		default:
			if strings.HasPrefix(cmd, ":") {
				fmt.Fprintf(out, "Unknown command %s (try :help)\n", cmd)
				continue
			}
			img, err := a.service.Preview(ctx, line, source)
			if err != nil {
				return a.track(err)
			}
			prompts = append(prompts[:session.Cursor()+1], line)
			session.Apply(img)
			if img.IsPlaceholder() {
				fmt.Fprintln(out, "Generation failed; the placeholder image was added. Use :undo to drop it.")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return a.track(fmt.Errorf("reading input: %w", err))
	}
	return nil
}

func writeImage(session *studio.EditSession, path string) error {
	if path == "" {
		return fmt.Errorf("missing path")
	}
	img, ok := session.Current()
	if !ok {
		return fmt.Errorf("no image")
	}
	return os.WriteFile(path, img.Data, 0644)
}
