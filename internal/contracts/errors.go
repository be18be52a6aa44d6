package contracts

import "github.com/rotisserie/eris"

// ⭐ SSOT: 에러 분류는 여기서만 정의
// 호출부는 eris.Is 로 분류한다.
var (
	// ErrNotFound 조회 대상이 없음 (store, data source 공통)
	ErrNotFound = eris.New("not found")

	// ErrTransport data source 연결 실패, 타임아웃, 5xx
	ErrTransport = eris.New("data source transport error")

	// ErrMalformedInput 잘못된 resolution key, period, category 입력
	ErrMalformedInput = eris.New("malformed input")

	// ErrMalformedFormula 수식 문법 오류
	ErrMalformedFormula = eris.New("malformed formula")

	// ErrCompanyNotFound 티커에 해당하는 회사를 store에도 data source에도 찾지 못함
	ErrCompanyNotFound = eris.New("company not found")

	// ErrReservedJobID heartbeat 등 예약된 job id로 등록 시도
	ErrReservedJobID = eris.New("reserved job id")

	// ErrJobRunning 이미 실행 중인 population job을 다시 시작하려 함
	ErrJobRunning = eris.New("job already running")
)
