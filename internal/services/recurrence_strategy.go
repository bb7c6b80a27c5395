// Package services provides the recurring payment engine: recurrence
// calculation, due selection, per-rule execution, and run orchestration.
//
// This file implements the Strategy Pattern for next-occurrence
// calculation. Each frequency type (daily, weekly, monthly, yearly) has
// its own strategy that encapsulates the date arithmetic, including the
// day clamping that keeps month-end anchors stable.
package services

import (
	"fmt"
	"time"

	"scadenze/internal/core"
)

// RecurrenceStrategy is the strategy interface for computing the next
// occurrence of a recurring payment rule. Implementations are pure:
// deterministic, side-effect free, and total for a well-formed rule.
type RecurrenceStrategy interface {
	// Next returns the first occurrence strictly after from.
	Next(rule core.Rule, from core.Date) core.Date
}

// DailyStrategy implements RecurrenceStrategy for daily rules.
type DailyStrategy struct{}

// Next returns the day after from.
func (DailyStrategy) Next(_ core.Rule, from core.Date) core.Date {
	return from.AddDays(1)
}

// WeeklyStrategy implements RecurrenceStrategy for weekly rules.
type WeeklyStrategy struct{}

// Next returns the next date whose weekday equals the rule's anchor,
// strictly after from: at least one and at most seven days ahead.
func (WeeklyStrategy) Next(rule core.Rule, from core.Date) core.Date {
	delta := (rule.DayOfWeek - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDays(delta)
}

// MonthlyStrategy implements RecurrenceStrategy for monthly rules.
type MonthlyStrategy struct{}

// Next advances to the following month, landing on the rule's anchor
// day clamped to that month's length. A rule anchored on day 31
// degrades to Feb 28/29 instead of rolling into March.
func (MonthlyStrategy) Next(rule core.Rule, from core.Date) core.Date {
	year, month := from.Year(), from.Month()+1
	if month > 12 {
		month = 1
		year++
	}
	return core.NewDate(year, month, clampDay(rule.DayOfMonth, year, month))
}

// YearlyStrategy implements RecurrenceStrategy for yearly rules.
type YearlyStrategy struct{}

// Next advances one year, keeping the start date's month and the rule's
// anchor day. Feb 29 anchors land on Feb 28 in non-leap years.
func (YearlyStrategy) Next(rule core.Rule, from core.Date) core.Date {
	year := from.Year() + 1
	month := rule.StartDate.Month()
	return core.NewDate(year, month, clampDay(rule.DayOfMonth, year, month))
}

// clampDay limits an anchor day to the number of days in the target
// month.
func clampDay(day, year, month int) int {
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		return lastDay
	}
	return day
}

// recurrenceStrategies maps intervals to their corresponding strategies.
// This registry enables O(1) lookup and easy extension for new frequency types.
var recurrenceStrategies = map[core.Interval]RecurrenceStrategy{
	core.Daily:   DailyStrategy{},
	core.Weekly:  WeeklyStrategy{},
	core.Monthly: MonthlyStrategy{},
	core.Yearly:  YearlyStrategy{},
}

// GetRecurrenceStrategy returns the strategy for an interval. An
// unknown interval is a configuration problem the caller records as a
// per-rule failure.
func GetRecurrenceStrategy(interval core.Interval) (RecurrenceStrategy, error) {
	strategy, ok := recurrenceStrategies[interval]
	if !ok {
		return nil, fmt.Errorf("%w: unknown interval %q", core.ErrInvalidRecurrence, interval)
	}
	return strategy, nil
}

// RegisterRecurrenceStrategy allows registering custom strategies for new
// frequency types without modifying the registry.
func RegisterRecurrenceStrategy(interval core.Interval, strategy RecurrenceStrategy) {
	recurrenceStrategies[interval] = strategy
}

// NextOccurrence computes the occurrence following from for the given
// rule. It validates the rule's schedule first so that a malformed rule
// surfaces as a typed error instead of a nonsense date.
func NextOccurrence(rule core.Rule, from core.Date) (core.Date, error) {
	if err := rule.ValidateSchedule(); err != nil {
		return core.Date{}, fmt.Errorf("%w: %v", core.ErrInvalidRecurrence, err)
	}
	strategy, err := GetRecurrenceStrategy(rule.Interval)
	if err != nil {
		return core.Date{}, err
	}
	return strategy.Next(rule, from), nil
}
