package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// Kind identifies an exportable report
type Kind string

const (
	KindRetention   Kind = "retention"
	KindCohort      Kind = "cohort"
	KindBasic       Kind = "basic"
	KindProducts    Kind = "products"
	KindRepurchase  Kind = "repurchase"
	KindConsumption Kind = "consumption"
	KindAll         Kind = "all"
)

// Section titles, also used as report names in file names
const (
	TitleRetention         = "리텐션"
	TitleCohort            = "코호트 요약"
	TitleBasic             = "기본 KPI"
	TitleActiveUsers       = "활성 사용자"
	TitleProducts          = "제품별 매출"
	TitleRepurchaseRate    = "재구매율"
	TitleRepurchasePeriod  = "재구매 주기"
	TitleConsumptionTicket = "이용권별 소진 기간"
	TitleConsumptionDetail = "회원별 소진 기간"
	TitleAll               = "KPI 종합"
)

// AllScope is the scope label when no store or user is selected
const AllScope = "전체"

// OpenRangeLabel replaces an unset range bound in file names
const OpenRangeLabel = "전체기간"

// ErrUnknownKind is returned for an unsupported report kind
var ErrUnknownKind = errors.New("unknown report kind")

// Kinds lists every report kind in export order
func Kinds() []Kind {
	return []Kind{KindRetention, KindCohort, KindBasic, KindProducts, KindRepurchase, KindConsumption, KindAll}
}

// ParseKind validates a report kind string
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Name returns the human-readable report name used in file names
func (k Kind) Name() string {
	switch k {
	case KindRetention:
		return TitleRetention
	case KindCohort:
		return TitleCohort
	case KindBasic:
		return TitleBasic
	case KindProducts:
		return TitleProducts
	case KindRepurchase:
		return TitleRepurchasePeriod
	case KindConsumption:
		return "소진 기간"
	case KindAll:
		return TitleAll
	}
	return string(k)
}

// ScopeLabel picks the label for a selected user or store, user first
func ScopeLabel(store, user string) string {
	switch {
	case user != "":
		return user
	case store != "":
		return store
	}
	return AllScope
}

// FileName builds <scope>_<report>_<start>~<end>.<ext>
func FileName(scope, reportName string, rng kpi.DateRange, ext string) string {
	if scope == "" {
		scope = AllScope
	}
	start, end := rng.StartDate, rng.EndDate
	if start == "" {
		start = OpenRangeLabel
	}
	if end == "" {
		end = OpenRangeLabel
	}
	name := fmt.Sprintf("%s_%s_%s~%s", sanitize(scope), sanitize(reportName), start, end)
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return name
}

// sanitize drops path separators and spaces that break downloads
func sanitize(s string) string {
	r := strings.NewReplacer("/", "-", `\`, "-", " ", "", "\n", "", "\r", "")
	return r.Replace(s)
}
