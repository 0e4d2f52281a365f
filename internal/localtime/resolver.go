// Package localtime переводит текущий момент в гражданское время тренера.
// Все обращения к часовым поясам проходят через Resolver, чтобы
// подмена пояса по умолчанию была единственной и наблюдаемой.
package localtime

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimezone используется при пустом или неизвестном поясе
const DefaultTimezone = "Europe/Moscow"

// LocalTime - момент в поясе тренера
type LocalTime struct {
	Time     time.Time
	Location *time.Location
	// FellBack - запрошенный пояс не распознан, использован пояс по умолчанию
	FellBack bool
}

// At возвращает момент hh:mm в текущих локальных сутках
func (lt LocalTime) At(hour, minute int) time.Time {
	y, m, d := lt.Time.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, lt.Location)
}

type Resolver struct {
	fallback *time.Location
	logger   *zap.Logger

	mu    sync.RWMutex
	cache map[string]*time.Location
}

// NewResolver создаёт резолвер. Если defaultTZ не загружается, используется UTC
func NewResolver(defaultTZ string, logger *zap.Logger) *Resolver {
	if defaultTZ == "" {
		defaultTZ = DefaultTimezone
	}

	fallback, err := time.LoadLocation(defaultTZ)
	if err != nil {
		logger.Error("Failed to load default timezone, using UTC",
			zap.String("timezone", defaultTZ),
			zap.Error(err))
		fallback = time.UTC
	}

	return &Resolver{
		fallback: fallback,
		logger:   logger,
		cache:    make(map[string]*time.Location),
	}
}

// Location возвращает пояс по IANA-имени. Второе значение - true, если
// пришлось подставить пояс по умолчанию
func (r *Resolver) Location(tz string) (*time.Location, bool) {
	if tz == "" {
		r.logger.Warn("Timezone is not set, using default",
			zap.String("default", r.fallback.String()))
		return r.fallback, true
	}

	r.mu.RLock()
	loc, ok := r.cache[tz]
	r.mu.RUnlock()
	if ok {
		return loc, false
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.logger.Warn("Invalid timezone, using default",
			zap.String("timezone", tz),
			zap.String("default", r.fallback.String()),
			zap.Error(err))
		return r.fallback, true
	}

	r.mu.Lock()
	r.cache[tz] = loc
	r.mu.Unlock()

	return loc, false
}

// LocalNow переводит now в пояс tz
func (r *Resolver) LocalNow(tz string, now time.Time) LocalTime {
	loc, fellBack := r.Location(tz)
	return LocalTime{
		Time:     now.In(loc),
		Location: loc,
		FellBack: fellBack,
	}
}

// DaysBetween - разница в календарных днях между датами from и to в поясе loc
func DaysBetween(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	// UTC исключает влияние перехода на летнее время
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
