package classroom

// resolveCourse finds the unique course reachable from every supplied ancestor
// id in ref, walking owner references upward per level.
//
// All supplied ids must be mutually consistent: an id that reaches no course
// fails the whole resolution with ErrNotFound, and ids reaching two distinct
// courses fail with ErrAmbiguousHierarchy. A shallow id is never trusted on its
// own when a deeper one disagrees; this closes the forged-ancestor gap of a
// union-based single lookup.
func (svc *Service) resolveCourse(ref PathRef) (Course, error) {
	lookups := []struct {
		id  int
		get func(int) (Course, error)
	}{
		{ref.CourseID, svc.repo.GetCourseByID},
		{ref.LectureID, svc.repo.GetCourseOfLecture},
		{ref.HomeworkID, svc.repo.GetCourseOfHomework},
		{ref.SolutionID, svc.repo.GetCourseOfSolution},
		{ref.MarkID, svc.repo.GetCourseOfMark},
	}

	var found []Course
	for _, l := range lookups {
		if l.id == 0 {
			continue
		}
		course, err := l.get(l.id)
		if err != nil {
			return Course{}, err // ErrNotFound included: a dangling id cannot be consistent
		}
		if !containsCourse(found, course.ID) {
			found = append(found, course)
		}
	}

	switch len(found) {
	case 0:
		return Course{}, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return Course{}, ErrAmbiguousHierarchy
	}
}

func containsCourse(courses []Course, id int) bool {
	for _, c := range courses {
		if c.ID == id {
			return true
		}
	}
	return false
}

// validateParentage confirms that the parent entity referenced by a create
// operation actually belongs to the course identified in the path. It runs
// after authorization and before anything is persisted.
func (svc *Service) validateParentage(courseID int, kind string, id int, courseOf func(int) (Course, error)) error {
	owner, err := courseOf(id)
	if err != nil {
		return err
	}
	if owner.ID != courseID {
		return newHierarchyMismatch(kind, id, courseID)
	}
	return nil
}
