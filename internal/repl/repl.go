// Package repl is the interactive raw-value shell behind `cqictl repl`.
// Each line is tokenized into wire values, sent verbatim, and the classified
// response is printed.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/protocol/session"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
)

const Prompt = "CQi $ "

// LineReader yields one input line per call and io.EOF at the end.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

type scannerReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

// NewLineReader reads lines from in, echoing the prompt to out.
func NewLineReader(in io.Reader, out io.Writer) LineReader {
	return &scannerReader{sc: bufio.NewScanner(in), out: out}
}

func (r *scannerReader) ReadLine(prompt string) (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, prompt)
	}
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

type interactiveReader struct{}

// NewInteractiveReader prompts through pterm's interactive text input.
func NewInteractiveReader() LineReader { return interactiveReader{} }

func (interactiveReader) ReadLine(prompt string) (string, error) {
	return pterm.DefaultInteractiveTextInput.
		WithDefaultText(strings.TrimSpace(prompt)).
		Show()
}

type Options struct {
	User      string
	Password  string
	AutoLogin bool
	History   *History
}

type REPL struct {
	client *session.Client
	lines  LineReader
	out    io.Writer
	opts   Options
}

func New(client *session.Client, lines LineReader, out io.Writer, opts Options) *REPL {
	if opts.History == nil {
		opts.History = NewHistory("", 0)
	}
	return &REPL{client: client, lines: lines, out: out, opts: opts}
}

// Run logs in (when configured) and loops until EOF, .quit, ctx
// cancellation or a connection failure. EOF and cancellation both end the
// session cleanly: history is saved and CTRL_BYE sent.
func (r *REPL) Run(ctx context.Context) error {
	if r.opts.AutoLogin {
		res, err := r.client.Login(r.opts.User, r.opts.Password)
		if err != nil {
			r.print(RenderError(err))
			return err
		}
		r.print(RenderResult(res))
	}

	loaded, err := r.opts.History.Load()
	if err != nil {
		log.Warn().Err(err).Msg("repl history")
	}
	if !loaded {
		r.print(pterm.Info.Sprintln("No previous history."))
	}

	var runErr error
	for {
		line, err := r.readLine(ctx)
		if errors.Is(err, io.EOF) {
			r.print(pterm.Info.Sprintln("Received EOF"))
			break
		}
		if ctx.Err() != nil {
			r.print(pterm.Info.Sprintln("Received CTRL-C"))
			break
		}
		if err != nil {
			runErr = err
			break
		}
		r.opts.History.Add(line)
		quit, err := r.Exec(line)
		if err != nil {
			runErr = err
			break
		}
		if quit {
			break
		}
	}

	if err := r.opts.History.Save(); err != nil {
		log.Warn().Err(err).Msg("repl history")
	}
	if runErr != nil {
		return runErr
	}
	r.print(pterm.Info.Sprintln("Closing CQi connection..."))
	res, err := r.client.Logout()
	if err != nil {
		r.print(RenderError(err))
		return err
	}
	r.print(RenderResult(res))
	return nil
}

type lineResult struct {
	line string
	err  error
}

// readLine waits for the next line or ctx. A LineReader cannot be
// interrupted, so on cancellation its goroutine is left to finish on its own.
func (r *REPL) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := r.lines.ReadLine(Prompt)
		ch <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

// Exec handles one line. It reports quit for .quit/.exit and returns an
// error only when the connection can no longer be used.
func (r *REPL) Exec(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, ".") {
		return r.meta(line), nil
	}
	vals, err := Tokenize(line)
	if err != nil {
		r.print(RenderError(err))
		return false, nil
	}
	if len(vals) == 0 {
		return false, nil
	}
	r.print(RenderSending(vals))
	res, err := r.client.Exchange(vals...)
	if err != nil {
		r.print(RenderError(err))
		if cerr := r.client.Conn().Err(); cerr != nil || errors.Is(err, session.ErrConnClosed) {
			return true, err
		}
		return false, nil
	}
	r.print(RenderResult(res))
	return false, nil
}

func (r *REPL) meta(line string) bool {
	switch strings.Fields(line)[0] {
	case ".quit", ".exit":
		return true
	case ".commands":
		data := pterm.TableData{{"opcode", "signature"}}
		for _, cmd := range commands.All() {
			data = append(data, []string{fmt.Sprintf("0x%04X", uint16(cmd.Opcode)), cmd.Signature()})
		}
		out, err := renderTable(data)
		if err != nil {
			r.print(RenderError(err))
			return false
		}
		r.print(out)
	case ".history":
		for i, e := range r.opts.History.Entries() {
			r.print(fmt.Sprintf("%4d  %s\n", i+1, e))
		}
	default:
		r.print(pterm.Info.Sprintln(helpText))
	}
	return false
}

func (r *REPL) print(s string) {
	fmt.Fprint(r.out, s)
}

const helpText = `Enter values separated by spaces:
  CTRL_PING                 command name, sent as its opcode word
  12  0x0c  12:word  -3:int number, default byte; :word and :int select width
  "text"                    string
Meta commands: .commands .history .help .quit`
