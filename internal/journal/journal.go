package journal

import (
	"context"
	"time"

	"hirestimer/pkg/hrtime"
)

// Entry is one recorded transition. Classes are in whole milliseconds,
// 0 meaning the OS baseline.
type Entry struct {
	ID        int64
	At        time.Time
	FromClass int
	ToClass   int
	Direction string
}

func (d *DB) Record(ctx context.Context, tr hrtime.Transition) error {
	_, err := d.ExecContext(ctx, `
INSERT INTO transitions(at_ns, from_class, to_class, direction)
VALUES(?, ?, ?, ?);
`, tr.At.UnixNano(), int(tr.From), int(tr.To), tr.Direction())
	return err
}

// Recent returns the newest transitions, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.QueryContext(ctx, `
SELECT id, at_ns, from_class, to_class, direction
FROM transitions ORDER BY at_ns DESC, id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var atNs int64
		if err := rows.Scan(&e.ID, &atNs, &e.FromClass, &e.ToClass, &e.Direction); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, atNs)
		out = append(out, e)
	}
	return out, rows.Err()
}
