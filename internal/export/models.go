//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package export copies the normalized portfolio into a secondary
// relational database through GORM.
package export

import (
	"time"

	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
)

type customerRow struct {
	CustomerID     int64   `gorm:"primaryKey;autoIncrement:false;column:customer_id"`
	PersonAge      int     `gorm:"not null;column:person_age"`
	PersonIncome   float64 `gorm:"type:decimal(14,2);not null;column:person_income"`
	HomeOwnership  string  `gorm:"size:20;not null;column:person_home_ownership"`
	EmpLength      float64 `gorm:"type:decimal(5,1);not null;column:person_emp_length"`
	DefaultOnFile  string  `gorm:"size:1;not null;column:cb_person_default_on_file"`
	CredHistLength int     `gorm:"not null;column:cb_person_cred_hist_length"`
	Region         string  `gorm:"size:10;not null;column:region"`
}

func (customerRow) TableName() string { return "customers" }

type loanRow struct {
	LoanID          int64        `gorm:"primaryKey;autoIncrement:false;column:loan_id"`
	CustomerID      int64        `gorm:"not null;index:idx_loans_customer;column:customer_id"`
	Customer        *customerRow `gorm:"foreignKey:CustomerID;references:CustomerID"`
	Amount          float64      `gorm:"type:decimal(12,2);not null;column:loan_amnt"`
	Intent          string       `gorm:"size:30;not null;column:loan_intent"`
	Grade           string       `gorm:"size:1;not null;index:idx_loans_grade;column:loan_grade"`
	InterestRate    float64      `gorm:"type:decimal(5,2);not null;column:loan_int_rate"`
	PercentIncome   float64      `gorm:"type:decimal(5,2);not null;column:loan_percent_income"`
	Status          int          `gorm:"not null;column:loan_status"`
	OriginationDate time.Time    `gorm:"type:date;not null;column:origination_date"`
	TermMonths      int          `gorm:"not null;column:term_months"`
	MonthlyPayment  float64      `gorm:"type:decimal(12,2);not null;column:monthly_payment"`
}

func (loanRow) TableName() string { return "loans" }

type defaultRow struct {
	DefaultID          int64        `gorm:"primaryKey;autoIncrement:false;column:default_id"`
	LoanID             int64        `gorm:"not null;uniqueIndex:ux_defaults_loan;column:loan_id"`
	Loan               *loanRow     `gorm:"foreignKey:LoanID;references:LoanID"`
	CustomerID         int64        `gorm:"not null;index:idx_defaults_customer;column:customer_id"`
	Customer           *customerRow `gorm:"foreignKey:CustomerID;references:CustomerID"`
	DefaultDate        time.Time    `gorm:"type:date;not null;column:default_date"`
	OutstandingBalance float64      `gorm:"type:decimal(12,2);not null;column:outstanding_balance"`
	RecoveredAmount    float64      `gorm:"type:decimal(12,2);not null;column:recovered_amount"`
	RecoveryStatus     string       `gorm:"size:20;not null;column:recovery_status"`
}

func (defaultRow) TableName() string { return "defaults" }

// models lists the tables in dependency order.
func models() []any {
	return []any{&customerRow{}, &loanRow{}, &defaultRow{}}
}

func toCustomerRows(cs []portfolio.Customer) []customerRow {
	out := make([]customerRow, len(cs))
	for i, c := range cs {
		out[i] = customerRow{
			CustomerID:     c.ID,
			PersonAge:      c.Age,
			PersonIncome:   c.Income,
			HomeOwnership:  c.HomeOwnership,
			EmpLength:      c.EmpLength,
			DefaultOnFile:  c.DefaultOnFile,
			CredHistLength: c.CredHistLength,
			Region:         c.Region,
		}
	}
	return out
}

func toLoanRows(ls []portfolio.Loan) []loanRow {
	out := make([]loanRow, len(ls))
	for i, l := range ls {
		out[i] = loanRow{
			LoanID:          l.ID,
			CustomerID:      l.CustomerID,
			Amount:          l.Amount,
			Intent:          l.Intent,
			Grade:           l.Grade,
			InterestRate:    l.InterestRate,
			PercentIncome:   l.PercentIncome,
			Status:          l.Status,
			OriginationDate: l.OriginationDate,
			TermMonths:      l.TermMonths,
			MonthlyPayment:  l.MonthlyPayment,
		}
	}
	return out
}

func toDefaultRows(ds []portfolio.DefaultEvent) []defaultRow {
	out := make([]defaultRow, len(ds))
	for i, d := range ds {
		out[i] = defaultRow{
			DefaultID:          d.ID,
			LoanID:             d.LoanID,
			CustomerID:         d.CustomerID,
			DefaultDate:        d.DefaultDate,
			OutstandingBalance: d.OutstandingBalance,
			RecoveredAmount:    d.RecoveredAmount,
			RecoveryStatus:     string(d.RecoveryStatus),
		}
	}
	return out
}
