package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/vitos/edgex_trade_bot/internal/domain"
	"github.com/vitos/edgex_trade_bot/internal/usecase"
	"go.uber.org/zap"
)

// ErrExit is returned by Execute for the exit command.
var ErrExit = errors.New("exit requested")

// ErrUsage marks a malformed command line. Nothing reaches the engine.
var ErrUsage = errors.New("usage")

// Engine is the set of operations the console drives. *usecase.Engine
// implements it.
type Engine interface {
	EstablishGrid(ctx context.Context, symbol string, center, spacing, size float64) (*usecase.PlacementResult, error)
	EstablishDCA(ctx context.Context, symbol string, target, stepPercent, base float64) (*usecase.PlacementResult, error)
	EstablishScalp(ctx context.Context, symbol string, profitPercent, stopPercent, size float64) (*usecase.ScalpResult, error)
	EvaluateTrend(ctx context.Context, symbol string, size float64, leverage int) (*usecase.TrendResult, error)
	Unwind(ctx context.Context, symbol string) (*usecase.UnwindResult, error)
	Position(ctx context.Context, symbol string) (*usecase.PositionView, error)
	OpenOrders(ctx context.Context) ([]domain.OrderReference, error)
	Balance(ctx context.Context) (*domain.AccountSnapshot, error)
	Status() []*domain.StrategyRecord
}

type command struct {
	usage string
	help  string
	args  int
	run   func(ctx context.Context, args []string) error
}

type Console struct {
	engine   Engine
	out      io.Writer
	logger   *zap.Logger
	commands map[string]command
}

func New(engine Engine, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Console{engine: engine, out: out, logger: logger}
	c.commands = map[string]command{
		"grid":    {"grid SYMBOL CENTER SPACING SIZE", "place 5 buy and 5 sell limit orders around CENTER", 4, c.grid},
		"dca":     {"dca SYMBOL TARGET STEP% BASE", "ladder buy limits below TARGET, sizes BASE x1..x5", 4, c.dca},
		"scalp":   {"scalp SYMBOL PROFIT% STOP% SIZE", "market buy with a take-profit limit sell", 4, c.scalp},
		"trend":   {"trend SYMBOL SIZE LEVERAGE", "open a position following the trend signal", 3, c.trend},
		"stop":    {"stop SYMBOL", "cancel orders, close the position and drop strategies", 1, c.stop},
		"pos":     {"pos SYMBOL", "show position and price", 1, c.pos},
		"orders":  {"orders", "list open orders", 0, c.orders},
		"balance": {"balance", "show account balances", 0, c.balance},
		"status":  {"status", "list active strategies", 0, c.status},
		"help":    {"help", "show this help", 0, c.help},
		"exit":    {"exit", "stop the bot", 0, func(context.Context, []string) error { return ErrExit }},
	}
	return c
}

// Execute runs one command line. Engine failures are returned for the caller
// to report; the console keeps running after them.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q, try help", ErrUsage, fields[0])
	}
	args := fields[1:]
	if len(args) != cmd.args {
		return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}
	c.logger.Debug("Command", zap.String("cmd", name), zap.Strings("args", args))
	return cmd.run(ctx, args)
}

// Run reads commands from in until exit, EOF or ctx cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			err := c.Execute(ctx, line)
			if errors.Is(err, ErrExit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, "edgex> ")
}

func parseFloats(args []string, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := cast.ToFloat64E(args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number, got %q", ErrUsage, name, args[i])
		}
		out[i] = v
	}
	return out, nil
}

func (c *Console) grid(ctx context.Context, args []string) error {
	v, err := parseFloats(args[1:], "CENTER", "SPACING", "SIZE")
	if err != nil {
		return err
	}
	res, err := c.engine.EstablishGrid(ctx, args[0], v[0], v[1], v[2])
	c.printPlacement(res)
	return err
}

func (c *Console) dca(ctx context.Context, args []string) error {
	v, err := parseFloats(args[1:], "TARGET", "STEP%", "BASE")
	if err != nil {
		return err
	}
	res, err := c.engine.EstablishDCA(ctx, args[0], v[0], v[1], v[2])
	c.printPlacement(res)
	return err
}

func (c *Console) printPlacement(res *usecase.PlacementResult) {
	if res == nil {
		return
	}
	fmt.Fprintln(c.out, res.String())
	for _, e := range res.Ledger.Entries() {
		if e.Err != nil {
			fmt.Fprintf(c.out, "  %s %s @ %g: %v\n", e.Disposition, e.Request.Side, e.Request.Price, e.Err)
		}
	}
}

func (c *Console) scalp(ctx context.Context, args []string) error {
	v, err := parseFloats(args[1:], "PROFIT%", "STOP%", "SIZE")
	if err != nil {
		return err
	}
	res, err := c.engine.EstablishScalp(ctx, args[0], v[0], v[1], v[2])
	if res != nil {
		fmt.Fprintln(c.out, res.String())
		if res.TakeProfitErr != nil {
			fmt.Fprintf(c.out, "  take-profit: %v\n", res.TakeProfitErr)
		}
	}
	return err
}

func (c *Console) trend(ctx context.Context, args []string) error {
	v, err := parseFloats(args[1:2], "SIZE")
	if err != nil {
		return err
	}
	leverage, err := cast.ToIntE(args[2])
	if err != nil || leverage < 0 {
		return fmt.Errorf("%w: LEVERAGE must be a non-negative integer, got %q", ErrUsage, args[2])
	}
	res, err := c.engine.EvaluateTrend(ctx, args[0], v[0], leverage)
	if res != nil {
		fmt.Fprintln(c.out, res.String())
	}
	return err
}

func (c *Console) stop(ctx context.Context, args []string) error {
	res, err := c.engine.Unwind(ctx, args[0])
	if res != nil {
		fmt.Fprintln(c.out, res.String())
		for _, e := range []error{res.OrdersErr, res.CancelErr, res.PositionErr, res.CloseErr} {
			if e != nil {
				fmt.Fprintf(c.out, "  %v\n", e)
			}
		}
	}
	return err
}

func (c *Console) pos(ctx context.Context, args []string) error {
	view, err := c.engine.Position(ctx, args[0])
	if err != nil {
		return err
	}
	if !view.Position.IsOpen() {
		fmt.Fprintf(c.out, "%s: no position, price %g\n", view.Symbol, view.Price)
		return nil
	}
	p := view.Position
	fmt.Fprintf(c.out, "%s: size %g entry %g price %g uPnL %.2f", view.Symbol, p.Size, p.EntryPrice, view.Price, p.UnrealizedPnL)
	if pct, ok := p.PnLPercent(); ok {
		fmt.Fprintf(c.out, " (%.2f%%)", pct)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Console) orders(ctx context.Context, _ []string) error {
	orders, err := c.engine.OpenOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(c.out, "no open orders")
		return nil
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tSIDE\tTYPE\tPRICE\tAMOUNT")
	for _, o := range orders {
		price := "-"
		if o.HasPrice() {
			price = fmt.Sprintf("%g", o.Price)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%g\n", o.ID, o.Symbol, o.Side, o.Type, price, o.Amount)
	}
	return w.Flush()
}

func (c *Console) balance(ctx context.Context, _ []string) error {
	acc, err := c.engine.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "total %.2f  available %.2f  margin %.2f\n", acc.TotalBalance, acc.AvailableBalance, acc.MarginBalance)
	return nil
}

func (c *Console) status(context.Context, []string) error {
	recs := c.engine.Status()
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "no active strategies")
		return nil
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tKIND\tSTATE\tORDERS\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Symbol, r.Kind, r.State, len(r.Orders), r.CreatedAt.Format("15:04:05"))
	}
	return w.Flush()
}

func (c *Console) help(context.Context, []string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		cmd := c.commands[name]
		fmt.Fprintf(w, "%s\t%s\n", cmd.usage, cmd.help)
	}
	return w.Flush()
}
