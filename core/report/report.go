// Package report aggregates the dashboard figures.
package report

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/student"
)

const attendanceDays = 10

type Summary struct {
	TotalStudents    int64                  `json:"totalStudents"`
	BatchWise        []student.BatchCount   `json:"batchWise"`
	TotalRevenue     int64                  `json:"totalRevenue"`
	TotalCollected   int64                  `json:"totalCollected"`
	TotalPending     int64                  `json:"totalPending"`
	AttendanceByDate []attendance.DateCount `json:"attendanceByDate"`
}

type Service struct {
	students   student.Repository
	fees       fee.Repository
	attendance attendance.Repository
}

func NewService(students student.Repository, fees fee.Repository, att attendance.Repository) *Service {
	return &Service{students: students, fees: fees, attendance: att}
}

func (svc *Service) Summary(ctx context.Context) (Summary, error) {
	var (
		s   Summary
		err error
	)
	if s.TotalStudents, err = svc.students.Count(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting students")
	}
	if s.BatchWise, err = svc.students.CountByBatch(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting students by batch")
	}

	totals, err := svc.fees.Totals(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "totalling fees")
	}
	s.TotalRevenue = totals.TotalRevenue
	s.TotalCollected = totals.TotalCollected
	s.TotalPending = totals.TotalPending

	if s.AttendanceByDate, err = svc.attendance.CountByDate(ctx, attendanceDays); err != nil {
		return Summary{}, errors.Wrap(err, "counting attendance")
	}

	if s.BatchWise == nil {
		s.BatchWise = []student.BatchCount{}
	}
	if s.AttendanceByDate == nil {
		s.AttendanceByDate = []attendance.DateCount{}
	}
	return s, nil
}
