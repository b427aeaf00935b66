package schedule

// MaxWeek is the highest week number the backend accepts.
const MaxWeek = 52

// NextWeeks lists the n server week numbers following current, wrapping
// from MaxWeek back to 1. n is capped at MaxWeek-1 so a week never appears
// twice and current itself is never repeated. A current outside 1..MaxWeek
// yields nil.
func NextWeeks(current, n int) []int {
	if current < 1 || current > MaxWeek || n <= 0 {
		return nil
	}
	n = min(n, MaxWeek-1)

	weeks := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		weeks = append(weeks, (current-1+i)%MaxWeek+1)
	}
	return weeks
}
