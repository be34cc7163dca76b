package report

import (
	"fmt"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// Visit markers used in the retention day columns
const (
	VisitedMark    = "방문"
	NotVisitedMark = "미방문"
)

// RetentionTable flattens retention rows: user, first visit, Day0..Day70,
// visit count and retention ratio.
func RetentionTable(rows []kpi.RetentionRow) Table {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		row := Row{
			{Column: "사용자", Value: r.UserName},
			{Column: "첫 방문일", Value: r.FirstVisit},
		}
		for d := 0; d < kpi.RetentionDays; d++ {
			mark := NotVisitedMark
			if r.Days[d] {
				mark = VisitedMark
			}
			row = append(row, Cell{Column: fmt.Sprintf("Day%d", d), Value: mark})
		}
		row = append(row,
			Cell{Column: "총 방문 횟수", Value: r.VisitCount},
			Cell{Column: "리텐션", Value: r.RatioText},
		)
		out = append(out, row)
	}
	return NewTable(TitleRetention, out)
}

// CohortSummaryTable flattens the per-checkpoint summary
func CohortSummaryTable(rows []kpi.CohortSummaryRow) Table {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row{
			{Column: "기준일", Value: r.Label},
			{Column: "방문 사용자 수", Value: r.ActiveUsers},
			{Column: "전체 사용자 수", Value: r.TotalUsers},
			{Column: "비율", Value: r.RateText},
		})
	}
	return NewTable(TitleCohort, out)
}

// BasicSummaryTable is a single-row table of the headline KPIs
func BasicSummaryTable(res kpi.BasicKPIResult) Table {
	return NewTable(TitleBasic, []Row{{
		{Column: "활성 사용자 수", Value: res.ActiveUserCount},
		{Column: "활성 사용자 평균 잔 수", Value: fmt.Sprintf("%.2f", res.AvgCupsPerActive)},
		{Column: "총 주문 수", Value: res.TotalOrders},
		{Column: "총 매출", Value: res.TotalRevenue},
		{Column: "총 원가", Value: res.TotalCost},
		{Column: "잔당 평균 마진", Value: res.AvgMarginPerCup.Round(0)},
	}})
}

// ActiveUserTable lists active users with their order counts
func ActiveUserTable(res kpi.BasicKPIResult) Table {
	out := make([]Row, 0, len(res.ActiveUsers))
	for _, u := range res.ActiveUsers {
		out = append(out, Row{
			{Column: "사용자", Value: u.UserName},
			{Column: "방문 일수", Value: u.VisitDays},
			{Column: "주문 수", Value: u.OrderCount},
		})
	}
	return NewTable(TitleActiveUsers, out)
}

// ProductTable lists per-product sales. Money cells stay numeric so
// spreadsheet exports can sum them.
func ProductTable(res kpi.BasicKPIResult) Table {
	out := make([]Row, 0, len(res.Products))
	for _, p := range res.Products {
		out = append(out, Row{
			{Column: "제품", Value: p.Label},
			{Column: "판매 수량", Value: p.Count},
			{Column: "단가", Value: p.UnitPrice},
			{Column: "총 매출", Value: p.Revenue},
			{Column: "총 원가", Value: p.Cost},
			{Column: "이익", Value: p.Profit},
		})
	}
	return NewTable(TitleProducts, out)
}

// RepurchaseRateTable is a single-row table of the repurchase rate
func RepurchaseRateTable(res kpi.RepurchaseRateResult) Table {
	return NewTable(TitleRepurchaseRate, []Row{{
		{Column: "대상 회원 수", Value: res.EligibleMembers},
		{Column: "재구매 회원 수", Value: res.RepurchasedMembers},
		{Column: "재구매율", Value: res.RateText},
	}})
}

// RepurchasePeriodTable flattens every kept repurchase period
func RepurchasePeriodTable(res kpi.RepurchasePeriodResult) Table {
	var out []Row
	for _, m := range res.UserPeriods {
		for _, p := range m.Periods {
			out = append(out, Row{
				{Column: "회원", Value: m.MemberName},
				{Column: "이용권", Value: p.TicketName},
				{Column: "소진일", Value: p.ConsumptionDate},
				{Column: "재구매 이용권", Value: p.NextTicketName},
				{Column: "재구매일", Value: p.RepurchaseDate},
				{Column: "재구매 주기(일)", Value: p.Days},
				{Column: "회원 평균(일)", Value: m.AvgDays},
			})
		}
	}
	return NewTable(fmt.Sprintf("%s (전체 평균 %.1f일)", TitleRepurchasePeriod, res.TotalAvgDays), out)
}

// ConsumptionTicketTable lists average consumption days per ticket
func ConsumptionTicketTable(res kpi.ConsumptionPeriodResult) Table {
	out := make([]Row, 0, len(res.TicketAverages))
	for _, t := range res.TicketAverages {
		out = append(out, Row{
			{Column: "이용권", Value: t.TicketName},
			{Column: "이용권 수", Value: t.Memberships},
			{Column: "평균 소진 기간(일)", Value: t.AvgDays},
		})
	}
	return NewTable(TitleConsumptionTicket, out)
}

// ConsumptionDetailTable lists the per-membership consumption spans
func ConsumptionDetailTable(res kpi.ConsumptionPeriodResult) Table {
	out := make([]Row, 0, len(res.UserDetails))
	for _, d := range res.UserDetails {
		out = append(out, Row{
			{Column: "회원", Value: d.MemberName},
			{Column: "이용권", Value: d.TicketName},
			{Column: "구매일", Value: d.PurchaseDate},
			{Column: "소진일", Value: d.ConsumptionDate},
			{Column: "소진 기간(일)", Value: d.Days},
		})
	}
	return NewTable(TitleConsumptionDetail, out)
}
