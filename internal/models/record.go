package models

// RecordKind tags which variant a Record carries.
type RecordKind string

const (
	RecordKindStudent RecordKind = "student"
	RecordKindTeacher RecordKind = "teacher"
)

// Record is a student or a teacher. Exactly one pointer is set, matching Kind.
type Record struct {
	Kind    RecordKind `json:"kind"`
	Student *Student   `json:"student,omitempty"`
	Teacher *Teacher   `json:"teacher,omitempty"`
}

func StudentRecord(s Student) Record {
	return Record{Kind: RecordKindStudent, Student: &s}
}

func TeacherRecord(t Teacher) Record {
	return Record{Kind: RecordKindTeacher, Teacher: &t}
}

// ID returns the id of whichever variant is present.
func (r Record) ID() string {
	switch r.Kind {
	case RecordKindStudent:
		if r.Student != nil {
			return r.Student.ID
		}
	case RecordKindTeacher:
		if r.Teacher != nil {
			return r.Teacher.ID
		}
	}
	return ""
}

// Name returns the display name of whichever variant is present.
func (r Record) Name() string {
	switch r.Kind {
	case RecordKindStudent:
		if r.Student != nil {
			return r.Student.Name
		}
	case RecordKindTeacher:
		if r.Teacher != nil {
			return r.Teacher.Name
		}
	}
	return ""
}
