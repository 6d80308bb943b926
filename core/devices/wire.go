package devices

import "time"

// Raw vendor payloads. Only these types ever see untyped JSON.

type envelope struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Pages   int    `json:"pages" validate:"gte=0"`
	PageNo  int    `json:"pageNo" validate:"gte=0"`
}

type wireLock struct {
	LockID    int64  `json:"lockId" validate:"required,gt=0"`
	LockAlias string `json:"lockAlias"`
	LockName  string `json:"lockName"`
}

type lockList struct {
	envelope
	List []wireLock `json:"list"`
}

type wireSlot struct {
	KeyboardPwdID   int64  `json:"keyboardPwdId" validate:"required,gt=0"`
	LockID          int64  `json:"lockId"`
	KeyboardPwd     string `json:"keyboardPwd" validate:"omitempty,numeric"`
	KeyboardPwdName string `json:"keyboardPwdName"`
	StartDate       int64  `json:"startDate" validate:"gte=0"`
	EndDate         int64  `json:"endDate" validate:"gte=0"`
	Status          int    `json:"status"`
}

type slotList struct {
	envelope
	List []wireSlot `json:"list"`
}

// slotActive is the vendor status for a usable passcode.
const slotActive = 1

func (w wireLock) typed() Lock {
	return Lock{ID: w.LockID, Alias: w.LockAlias, Name: w.LockName}
}

func (w wireSlot) typed(lockID int64) Slot {
	s := Slot{
		ID:     w.KeyboardPwdID,
		LockID: lockID,
		Name:   w.KeyboardPwdName,
		Code:   w.KeyboardPwd,
		Active: w.Status == slotActive,
	}
	if w.StartDate > 0 {
		t := time.UnixMilli(w.StartDate).UTC()
		s.StartsAt = &t
	}
	if w.EndDate > 0 {
		t := time.UnixMilli(w.EndDate).UTC()
		s.EndsAt = &t
	}
	return s
}
