// Package rules declares the rule set of every API operation.
package rules

import (
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/core/validation"
)

// Operations
const (
	OpLogin          = "auth.login"
	OpRegister       = "auth.register"
	OpForgotPassword = "auth.forgot-password"
	OpResetPassword  = "auth.reset-password"
	OpChangePassword = "auth.change-password"
	OpUpdateProfile  = "auth.update-profile"

	OpCreateStudent = "students.create"
	OpUpdateStudent = "students.update"

	OpCreateGroup    = "groups.create"
	OpUpdateGroup    = "groups.update"
	OpAssignStudents = "groups.assign-students"

	OpCreateSession = "sessions.create"
	OpUpdateSession = "sessions.update"

	OpRecordAttendance = "attendance.record"
	OpUpdateAttendance = "attendance.update"

	OpCreatePayment = "payments.create"
	OpUpdatePayment = "payments.update"

	OpCreateQuiz = "quizzes.create"
	OpUpdateQuiz = "quizzes.update"
	OpSubmitQuiz = "quizzes.submit"

	OpCreateExam       = "exams.create"
	OpUpdateExam       = "exams.update"
	OpRecordExamResult = "exams.record-result"

	OpCreateAnnouncement = "announcements.create"
	OpUpdateAnnouncement = "announcements.update"

	OpSendNotification = "notifications.send"
	OpExportReport     = "reports.export"
	OpUpdateSetting    = "settings.update"
	OpUploadFile       = "uploads.upload"
)

// IDParam is the route param holding the id of the updated record.
const IDParam = "id"

var (
	staff   = []string{user.RoleAdmin, user.RoleTeacher}
	admins  = []string{user.RoleAdmin}
	members = user.AllRoles
)

// All returns every rule set. settings backs the dynamic rules of setting updates.
func All(settings setting.Store) []validation.RuleSet {
	var sets []validation.RuleSet
	sets = append(sets, authRules()...)
	sets = append(sets, studentRules()...)
	sets = append(sets, groupRules()...)
	sets = append(sets, sessionRules()...)
	sets = append(sets, attendanceRules()...)
	sets = append(sets, paymentRules()...)
	sets = append(sets, quizRules()...)
	sets = append(sets, examRules()...)
	sets = append(sets, announcementRules()...)
	sets = append(sets, notificationRules(), reportRules(), uploadRules())
	sets = append(sets, validation.RuleSet{
		Operation: OpUpdateSetting,
		Roles:     admins,
		Resolve:   setting.Resolver(settings),
	})
	return sets
}

// NewRegistry registers All(settings).
func NewRegistry(settings setting.Store) (*validation.Registry, error) {
	reg := validation.NewRegistry()
	if err := reg.Register(All(settings)...); err != nil {
		return nil, err
	}
	return reg, nil
}

// onUpdate turns creation constraints into update ones: present fields only.
func onUpdate(fields []validation.FieldConstraint) []validation.FieldConstraint {
	out := make([]validation.FieldConstraint, len(fields))
	for i, fc := range fields {
		if fc.IsWildcard() {
			out[i] = fc
			continue
		}
		rules := make([]validation.Predicate, 0, len(fc.Rules)+1)
		rules = append(rules, validation.Sometimes())
		rules = append(rules, fc.Rules...)
		out[i] = validation.FieldConstraint{Field: fc.Field, Label: fc.Label, Rules: rules}
	}
	return out
}
