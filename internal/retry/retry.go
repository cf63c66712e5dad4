// Package retry содержит общий комбинатор повторов для всех сетевых вызовов:
// клиента API поставщика, валидации и скачивания изображений.
package retry

import (
	"context"
	"time"
)

// Policy политика повторов с линейным backoff
type Policy struct {
	MaxAttempts int           // Всего попыток, включая первую
	Backoff     time.Duration // Пауза перед вторым запросом
	BackoffStep time.Duration // Прибавка к паузе на каждую следующую попытку
}

// DefaultPolicy политика по умолчанию: 3 попытки, 1s, 2s между ними
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     1 * time.Second,
		BackoffStep: 1 * time.Second,
	}
}

// Do выполняет op с повторами по политике p.
// Повторяются только ошибки, для которых isRetryable возвращает true;
// остальные (включая "не найдено") возвращаются сразу.
// Контекст проверяется перед каждой попыткой и во время пауз
func Do(ctx context.Context, p Policy, isRetryable func(error) bool, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if isRetryable == nil || !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Backoff + time.Duration(attempt-1)*p.BackoffStep
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// sleep ждет delay или отмену контекста
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
