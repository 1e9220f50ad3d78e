package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/verdile/desdemona/config"
	"github.com/verdile/desdemona/eval"
	"github.com/verdile/desdemona/othello"
	"github.com/verdile/desdemona/search"
	"github.com/verdile/desdemona/ttable"
)

var errQuit = errors.New("quit")

type ShellController struct {
	l   *readline.Instance
	out io.Writer
	cfg *config.Config

	tt     *ttable.Table
	engine *search.Engine

	pos     othello.Position
	turn    othello.Color
	history []boardState
}

type boardState struct {
	pos  othello.Position
	turn othello.Color
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func NewShellController(cfg *config.Config) (*ShellController, error) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mdesdemona>\033[0m ",
		HistoryFile:     "/tmp/desdemona-readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, err
	}
	tt, err := ttable.New(cfg.TableMemFraction)
	if err != nil {
		return nil, err
	}
	engine := search.NewEngine(tt, eval.NewPositional())
	engine.SetLevel(cfg.Depth, cfg.Selectivity)
	engine.SetThreads(cfg.Threads)
	engine.SetMultiPV(cfg.MultiPV)
	engine.SetTimeBudget(cfg.TimeBudget)
	return &ShellController{
		l:      l,
		out:    l.Stdout(),
		cfg:    cfg,
		tt:     tt,
		engine: engine,
		pos:    othello.Start(),
	}, nil
}

func (sc *ShellController) showMessage(msg string) {
	io.WriteString(sc.out, msg)
	io.WriteString(sc.out, "\n")
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("error: " + err.Error())
}

func (sc *ShellController) display() {
	sc.showMessage(sc.pos.DisplayText(sc.turn))
}

func (sc *ShellController) setBoard(args []string) error {
	if len(args) != 2 {
		return errors.New("setboard <64 chars of X, O, -> <X|O to move>")
	}
	var toMove othello.Color
	switch strings.ToUpper(args[1]) {
	case "X", "B":
		toMove = othello.Black
	case "O", "W":
		toMove = othello.White
	default:
		return fmt.Errorf("bad side to move %q", args[1])
	}
	p, err := othello.ParseBoard(args[0], toMove)
	if err != nil {
		return err
	}
	sc.pos = p
	sc.turn = toMove
	sc.history = sc.history[:0]
	sc.display()
	return nil
}

func (sc *ShellController) playMove(arg string) error {
	sq, err := othello.ParseSquare(arg)
	if err != nil {
		return err
	}
	if sq == othello.Pass {
		if sc.pos.LegalMoves() != 0 {
			return errors.New("pass not allowed, moves are available")
		}
		sc.history = append(sc.history, boardState{sc.pos, sc.turn})
		sc.pos.Pass()
		sc.turn = sc.turn.Other()
		sc.display()
		return nil
	}
	if sc.pos.LegalMoves()&(1<<uint(sq)) == 0 {
		return fmt.Errorf("%s is not a legal move", othello.SquareString(sq))
	}
	sc.history = append(sc.history, boardState{sc.pos, sc.turn})
	sc.pos.Play(sq, othello.Flips(sc.pos.Mover, sc.pos.Opp, sq))
	sc.turn = sc.turn.Other()
	sc.display()
	return nil
}

func (sc *ShellController) undo() error {
	if len(sc.history) == 0 {
		return errors.New("nothing to undo")
	}
	last := sc.history[len(sc.history)-1]
	sc.pos, sc.turn = last.pos, last.turn
	sc.history = sc.history[:len(sc.history)-1]
	sc.display()
	return nil
}

// solve runs a search on the current position, printing progress
// lines as deeper results arrive. Ctrl-C stops the search, not the
// shell.
func (sc *ShellController) solve(sig chan os.Signal) error {
	if sc.pos.GameOver() {
		sc.showMessage(fmt.Sprintf("game over, score %+d", sc.pos.FinalScore()))
		return nil
	}
	sc.engine.SetPosition(sc.pos)
	sc.engine.OnProgress(6, func(r search.Result) {
		sc.showMessage(r.String())
	})
	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			sc.engine.Stop()
		case <-done:
		}
	}()
	start := time.Now()
	r, err := sc.engine.Run(context.Background())
	close(done)
	if err != nil {
		return err
	}
	sc.showMessage(r.String())
	log.Info().Uint64("nodes", r.Nodes).
		Float64("nps", float64(r.Nodes)/time.Since(start).Seconds()).
		Msg("search-done")
	return nil
}

func (sc *ShellController) setLevel(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("level <depth> [selectivity 0-5]")
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	sel := 5
	if len(args) == 2 {
		sel, err = strconv.Atoi(args[1])
		if err != nil {
			return err
		}
	}
	sc.engine.SetLevel(depth, sel)
	sc.showMessage(fmt.Sprintf("level %d@%d", depth, sel))
	return nil
}

func (sc *ShellController) setThreads(arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return err
	}
	sc.engine.SetThreads(n)
	sc.showMessage(fmt.Sprintf("threads %d", n))
	return nil
}

func usage(w io.Writer) {
	io.WriteString(w, "commands:\n")
	io.WriteString(w, "new - reset to the starting position\n")
	io.WriteString(w, "setboard <board> <turn> - board is 64 chars of X, O, -; turn is X or O\n")
	io.WriteString(w, "play <move> - play a move, e.g. play d3; PA to pass\n")
	io.WriteString(w, "undo - take back the last move\n")
	io.WriteString(w, "moves - list the legal moves\n")
	io.WriteString(w, "solve - search the current position at the configured level\n")
	io.WriteString(w, "level <depth> [sel] - set search depth and selectivity (5 = exact)\n")
	io.WriteString(w, "threads <n> - set the number of search threads\n")
	io.WriteString(w, "display - print the board\n")
	io.WriteString(w, "bye, exit - leave\n")
}

func parseLine(line string) (string, []string, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, nil
	}
	return fields[0], fields[1:], nil
}

func (sc *ShellController) execLine(line string, sig chan os.Signal) error {
	cmd, args, err := parseLine(line)
	if err != nil {
		return err
	}
	if cmd == "" {
		return nil
	}
	switch cmd {
	case "new":
		sc.pos = othello.Start()
		sc.turn = othello.Black
		sc.history = sc.history[:0]
		sc.display()
	case "setboard":
		return sc.setBoard(args)
	case "play":
		if len(args) != 1 {
			return errors.New("play <move>")
		}
		return sc.playMove(args[0])
	case "undo":
		return sc.undo()
	case "moves":
		var ms []string
		for m := sc.pos.LegalMoves(); m != 0; m &= m - 1 {
			ms = append(ms, othello.SquareString(bits.TrailingZeros64(m)))
		}
		sc.showMessage(strings.Join(ms, " "))
	case "solve", "go":
		return sc.solve(sig)
	case "level":
		return sc.setLevel(args)
	case "threads":
		if len(args) != 1 {
			return errors.New("threads <n>")
		}
		return sc.setThreads(args[0])
	case "display":
		sc.display()
	case "help":
		usage(sc.out)
	case "bye", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// Execute runs a single command line, for non-interactive use.
func (sc *ShellController) Execute(sig chan os.Signal, line string) {
	if err := sc.execLine(strings.TrimSpace(line), sig); err != nil && err != errQuit {
		sc.showError(err)
	}
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()
	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		err = sc.execLine(strings.TrimSpace(line), sig)
		if err == errQuit {
			break
		}
		if err != nil {
			sc.showError(err)
		}
	}
	log.Debug().Msg("exiting readline loop")
	sig <- syscall.SIGINT
}
