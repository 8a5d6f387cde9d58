package auth

import (
	"time"

	"tendering/models"
)

// LockoutPolicy блокирует учётную запись после Threshold неудачных входов подряд.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LoginState - значения счётчика и блокировки, которые нужно сохранить
type LoginState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

func (p LockoutPolicy) IsLocked(u *models.User, now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// RegisterFailure считает очередную ошибку. Истёкшая блокировка сбрасывает счётчик.
func (p LockoutPolicy) RegisterFailure(u *models.User, now time.Time) LoginState {
	attempts := u.FailedLoginAttempts
	if u.LockedUntil != nil && !now.Before(*u.LockedUntil) {
		attempts = 0
	}
	attempts++

	state := LoginState{FailedAttempts: attempts}
	if attempts >= p.Threshold {
		until := now.Add(p.Duration)
		state.LockedUntil = &until
	}
	return state
}

// NeedsReset - после успешного входа есть что сбрасывать
func (p LockoutPolicy) NeedsReset(u *models.User) bool {
	return u.FailedLoginAttempts != 0 || u.LockedUntil != nil
}
