package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DefaultSweepWorkers - сколько бронирований обрабатывается параллельно
const DefaultSweepWorkers = 4

// errSkipped - бронирование пропущено без ошибки (нет участника, нет связи)
var errSkipped = errors.New("booking skipped")

// SweepReport - итог одного прохода
type SweepReport struct {
	SweepID    string
	Candidates int
	// Fired - сколько раз сработал каждый этап (или списание)
	Fired   map[model.ReminderStage]int
	Skipped int
	Failed  int
	// Err объединяет ошибки отдельных бронирований
	Err error
}

// Total возвращает общее количество срабатываний
func (r *SweepReport) Total() int {
	total := 0
	for _, n := range r.Fired {
		total += n
	}
	return total
}

type bookingOutcome struct {
	fired []model.ReminderStage
	err   error
}

func newSweepID() string {
	return uuid.NewString()
}

// forEachBooking обрабатывает бронирования пулом из workers горутин.
// Ошибка одного бронирования не прерывает остальные. Каждый воркер пишет
// только в свою ячейку результатов
func forEachBooking(
	ctx context.Context,
	sweepID string,
	bookings []*model.Booking,
	workers int,
	fn func(ctx context.Context, b *model.Booking) ([]model.ReminderStage, error),
) *SweepReport {
	if workers <= 0 {
		workers = DefaultSweepWorkers
	}

	outcomes := make([]bookingOutcome, len(bookings))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, b := range bookings {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].err = err
				return nil
			}
			fired, err := fn(ctx, b)
			outcomes[i] = bookingOutcome{fired: fired, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report := &SweepReport{
		SweepID:    sweepID,
		Candidates: len(bookings),
		Fired:      make(map[model.ReminderStage]int),
	}

	for i, o := range outcomes {
		for _, stage := range o.fired {
			report.Fired[stage]++
		}
		switch {
		case o.err == nil:
		case errors.Is(o.err, errSkipped):
			report.Skipped++
		default:
			report.Failed++
			report.Err = multierr.Append(report.Err, fmt.Errorf("booking %d: %w", bookings[i].ID, o.err))
		}
	}

	return report
}
