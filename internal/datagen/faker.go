//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen provides the random source and batching helpers used to
// synthesize data.
package datagen

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Faker is a seeded random source backed by gofakeit. Every synthesis
// step receives one explicitly; nothing draws from global state.
type Faker struct {
	faker *gofakeit.Faker
	seed  uint64
}

// NewFaker creates a new Faker with a seed taken from the clock.
func NewFaker() *Faker {
	return NewFakerWithSeed(uint64(time.Now().UnixNano()))
}

// NewFakerWithSeed creates a new Faker with a specific seed for reproducibility.
func NewFakerWithSeed(seed uint64) *Faker {
	return &Faker{
		faker: gofakeit.New(seed),
		seed:  seed,
	}
}

// Seed returns the seed the Faker was created with.
func (f *Faker) Seed() uint64 {
	return f.seed
}

// Int generates a random integer between min and max (inclusive).
func (f *Faker) Int(min, max int) int {
	return f.faker.IntRange(min, max)
}

// Float64 generates a random float64 between min and max.
func (f *Faker) Float64(min, max float64) float64 {
	return f.faker.Float64Range(min, max)
}

// DaysAfter returns start plus a uniform number of whole days in [0, window].
func (f *Faker) DaysAfter(start time.Time, window int) time.Time {
	if window <= 0 {
		return start
	}
	return start.AddDate(0, 0, f.Int(0, window))
}

// Perm returns a random permutation of 1..n.
func (f *Faker) Perm(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	// Fisher-Yates
	for i := n - 1; i > 0; i-- {
		j := f.Int(0, i)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Choose returns a random element from the given slice.
func Choose[T any](f *Faker, items []T) T {
	if len(items) == 0 {
		var zero T
		return zero
	}
	return items[f.Int(0, len(items)-1)]
}

// ChooseWeighted returns a random element based on weights.
func ChooseWeighted[T any](f *Faker, items []T, weights []int) T {
	if len(items) == 0 || len(weights) == 0 {
		var zero T
		return zero
	}

	totalWeight := 0
	for _, w := range weights {
		totalWeight += w
	}

	r := f.Int(1, totalWeight)
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return items[i]
		}
	}

	return items[len(items)-1]
}
