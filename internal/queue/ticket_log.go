package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
)

// TicketLogHandler appends one line per issued ticket to dir/tickets.log.
func TicketLogHandler(dir string) HandlerFunc {
    return func(_ context.Context, body []byte) error {
        var ev TicketIssuedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return fmt.Errorf("mkdir %s: %w", dir, err)
        }
        f, err := os.OpenFile(filepath.Join(dir, "tickets.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
        if err != nil {
            return fmt.Errorf("open log file: %w", err)
        }
        defer f.Close()
        if _, err := f.WriteString(formatTicketLine(ev)); err != nil {
            return fmt.Errorf("write log: %w", err)
        }
        return nil
    }
}

func formatTicketLine(ev TicketIssuedEvent) string {
    return fmt.Sprintf("[%s] Ticket issued | ticket_id=%d | reservation_id=%d | user_id=%d | places=%d | total=%s\n",
        ev.IssuedAt, ev.TicketID, ev.ReservationID, ev.UserID, ev.Places, ev.Total)
}
