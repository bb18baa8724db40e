package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Console implementa ports.AlertSink escribiendo a un io.Writer.
// En modo compacto cada alerta es una línea; en modo tabla los cierres y el
// resumen de portfolio se imprimen con tablewriter.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	table bool
}

// NewConsole crea un sink que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un sink para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// SignalGenerated imprime una señal accionable o hold.
func (c *Console) SignalGenerated(_ context.Context, sig domain.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "[%s] SIGNAL %s %s conf:%.2f price:%.3f→%.3f (%+.1f%%)\n",
		stamp(sig.CreatedAt), sig.Direction, sig.MarketID,
		sig.Confidence, sig.CurrentPrice, sig.ExpectedPrice,
		sig.ExpectedReturn()*100)
	return nil
}

// DecisionMade imprime el veredicto del motor de decisión.
func (c *Console) DecisionMade(_ context.Context, dec domain.TradingDecision) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	verdict := "SKIP"
	if dec.ShouldTrade {
		verdict = "TRADE"
	}
	fmt.Fprintf(c.out, "[%s] %s %s %s size:$%.2f risk:%.2f — %s\n",
		stamp(dec.EvaluatedAt), verdict, dec.Signal.Direction, dec.Signal.MarketID,
		dec.PositionSize, dec.RiskScore, dec.Reasoning)
	return nil
}

// PositionClosed imprime el trade cerrado. En modo tabla usa una fila de
// tablewriter para que los cierres resalten sobre el stream de señales.
func (c *Console) PositionClosed(_ context.Context, rec domain.TradeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.table {
		fmt.Fprintf(c.out, "[%s] CLOSED %s %s %s pnl:$%+.2f (%+.1f%%) %.3f→%.3f held:%.1fh\n",
			stamp(rec.ExitTime), rec.MarketID, rec.Direction, rec.Reason,
			rec.PnL, rec.ReturnPct*100, rec.EntryPrice, rec.ExitPrice, rec.DurationHours())
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] position closed\n", stamp(rec.ExitTime))
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Dir", "Reason", "Entry", "Exit", "Shares", "PnL", "Return", "Held")
	table.Append(
		rec.MarketID,
		string(rec.Direction),
		string(rec.Reason),
		fmt.Sprintf("%.3f", rec.EntryPrice),
		fmt.Sprintf("%.3f", rec.ExitPrice),
		fmt.Sprintf("%.2f", rec.Shares),
		fmt.Sprintf("$%+.2f", rec.PnL),
		fmt.Sprintf("%+.1f%%", rec.ReturnPct*100),
		fmt.Sprintf("%.1fh", rec.DurationHours()),
	)
	table.Render()
	return nil
}

// PortfolioSummary imprime el estado del portfolio al final de un ciclo.
// No es parte del sink: lo llama el loop principal con el Summary del ciclo.
func (c *Console) PortfolioSummary(s domain.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.table {
		fmt.Fprintf(c.out, "[%s] PORTFOLIO value:$%.2f balance:$%.2f pnl:$%+.2f (%+.1f%%) open:%d trades:%d win:%.0f%%\n",
			stamp(time.Time{}), s.TotalValue, s.Balance, s.TotalPnL,
			s.ReturnPct*100, s.OpenPositions, s.TotalTrades, s.WinRate*100)
		return
	}

	fmt.Fprintln(c.out, "\n=== PORTFOLIO ===")
	table := tablewriter.NewWriter(c.out)
	table.Header("Value", "Balance", "Realized", "Unrealized", "Return", "Open", "Trades", "Win rate")
	table.Append(
		fmt.Sprintf("$%.2f", s.TotalValue),
		fmt.Sprintf("$%.2f", s.Balance),
		fmt.Sprintf("$%+.2f", s.RealizedPnL),
		fmt.Sprintf("$%+.2f", s.UnrealizedPnL),
		fmt.Sprintf("%+.1f%%", s.ReturnPct*100),
		fmt.Sprintf("%d", s.OpenPositions),
		fmt.Sprintf("%d", s.TotalTrades),
		fmt.Sprintf("%.0f%%", s.WinRate*100),
	)
	table.Render()

	if s.TotalTrades > 0 {
		fmt.Fprintf(c.out, "  best:$%+.2f worst:$%+.2f\n", s.BestTradePnL, s.WorstTradePnL)
	}
	fmt.Fprintln(c.out)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05")
}
