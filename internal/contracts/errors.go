package contracts

import "errors"

// =============================================================================
// Error taxonomy
// =============================================================================
// 각 단계는 자신의 전제조건을 검사하고 아래 sentinel을 %w로 감싸서 반환한다.
// 호출자는 errors.Is로 분기한다.

var (
	// ErrInsufficientData 단계에 필요한 관측치가 부족함
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidPrice 0 이하 또는 NaN/Inf 가격
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidSeries 날짜가 정렬되지 않았거나 중복됨
	ErrInvalidSeries = errors.New("invalid price series")

	// ErrConvergence 변동성 모델 최적화가 수렴하지 않음
	ErrConvergence = errors.New("volatility model did not converge")

	// ErrEmptyResult 테스트 구간이 비어 있음 (degenerate split)
	ErrEmptyResult = errors.New("empty result")

	// ErrDataUnavailable 가격 데이터 조회 실패 (unknown symbol, network, empty)
	ErrDataUnavailable = errors.New("price data unavailable")
)

// IsInputError reports whether err is caused by the supplied data rather than
// by the system (used by the API layer for status mapping)
func IsInputError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidSeries) ||
		errors.Is(err, ErrEmptyResult)
}
