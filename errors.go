// Package trajgen generates time-parameterized joint trajectories for industrial arms from
// point-to-point, linear and circular motion commands.
package trajgen

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode is the motion planning result code surfaced to callers.
type ErrorCode int32

// Motion planning result codes.
const (
	CodeSuccess                ErrorCode = 1
	CodeFailure                ErrorCode = 99999
	CodePlanningFailed         ErrorCode = -1
	CodeInvalidMotionPlan      ErrorCode = -2
	CodeInvalidGroupName       ErrorCode = -15
	CodeInvalidGoalConstraints ErrorCode = -16
	CodeInvalidRobotState      ErrorCode = -17
	CodeNoIKSolution           ErrorCode = -31
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeFailure:
		return "FAILURE"
	case CodePlanningFailed:
		return "PLANNING_FAILED"
	case CodeInvalidMotionPlan:
		return "INVALID_MOTION_PLAN"
	case CodeInvalidGroupName:
		return "INVALID_GROUP_NAME"
	case CodeInvalidGoalConstraints:
		return "INVALID_GOAL_CONSTRAINTS"
	case CodeInvalidRobotState:
		return "INVALID_ROBOT_STATE"
	case CodeNoIKSolution:
		return "NO_IK_SOLUTION"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int32(c))
	}
}

// ErrorKind names one failure of the generation pipeline. The set is closed; every kind maps
// to exactly one ErrorCode.
type ErrorKind int

// Failure kinds.
const (
	KindUnknown ErrorKind = iota
	KindInvalidLimits
	KindVelocityScalingIncorrect
	KindAccelerationScalingIncorrect
	KindSamplingTimeIncorrect
	KindUnknownPlanningGroup
	KindNoJointNamesInStartState
	KindSizeMismatchInStartState
	KindJointsOfStartStateOutOfRange
	KindNonZeroVelocityInStartState
	KindNotExactlyOneGoalConstraintGiven
	KindOnlyOneGoalTypeAllowed
	KindStartStateGoalStateMismatch
	KindJointConstraintDoesNotBelongToGroup
	KindJointsOfGoalOutOfRange
	KindPositionConstraintNameMissing
	KindOrientationConstraintNameMissing
	KindPositionOrientationConstraintNameMismatch
	KindNoIKSolverAvailable
	KindNoPrimitivePoseGiven
	KindNoAuxiliaryPoint
	KindUnknownAuxiliaryPointName
	KindAuxiliaryPointNotAllowed
	KindInvalidCirclePath
	KindNoIKSolution
	KindPlanningFailed
	KindSamplingTimeMismatch
	KindTrajectoryMismatch
	KindBlendInvalid
	KindBlendNoIntersection
)

var kindInfo = map[ErrorKind]struct {
	name string
	code ErrorCode
}{
	KindUnknown:                                   {"Unknown", CodeFailure},
	KindInvalidLimits:                             {"InvalidLimits", CodeFailure},
	KindVelocityScalingIncorrect:                  {"VelocityScalingIncorrect", CodeInvalidMotionPlan},
	KindAccelerationScalingIncorrect:              {"AccelerationScalingIncorrect", CodeInvalidMotionPlan},
	KindSamplingTimeIncorrect:                     {"SamplingTimeIncorrect", CodeInvalidMotionPlan},
	KindUnknownPlanningGroup:                      {"UnknownPlanningGroup", CodeInvalidGroupName},
	KindNoJointNamesInStartState:                  {"NoJointNamesInStartState", CodeInvalidRobotState},
	KindSizeMismatchInStartState:                  {"SizeMismatchInStartState", CodeInvalidRobotState},
	KindJointsOfStartStateOutOfRange:              {"JointsOfStartStateOutOfRange", CodeInvalidRobotState},
	KindNonZeroVelocityInStartState:               {"NonZeroVelocityInStartState", CodeInvalidRobotState},
	KindNotExactlyOneGoalConstraintGiven:          {"NotExactlyOneGoalConstraintGiven", CodeInvalidGoalConstraints},
	KindOnlyOneGoalTypeAllowed:                    {"OnlyOneGoalTypeAllowed", CodeInvalidGoalConstraints},
	KindStartStateGoalStateMismatch:               {"StartStateGoalStateMismatch", CodeInvalidGoalConstraints},
	KindJointConstraintDoesNotBelongToGroup:       {"JointConstraintDoesNotBelongToGroup", CodeInvalidGoalConstraints},
	KindJointsOfGoalOutOfRange:                    {"JointsOfGoalOutOfRange", CodeInvalidGoalConstraints},
	KindPositionConstraintNameMissing:             {"PositionConstraintNameMissing", CodeInvalidGoalConstraints},
	KindOrientationConstraintNameMissing:          {"OrientationConstraintNameMissing", CodeInvalidGoalConstraints},
	KindPositionOrientationConstraintNameMismatch: {"PositionOrientationConstraintNameMismatch", CodeInvalidGoalConstraints},
	KindNoIKSolverAvailable:                       {"NoIKSolverAvailable", CodeNoIKSolution},
	KindNoPrimitivePoseGiven:                      {"NoPrimitivePoseGiven", CodeInvalidGoalConstraints},
	KindNoAuxiliaryPoint:                          {"NoAuxiliaryPoint", CodeInvalidGoalConstraints},
	KindUnknownAuxiliaryPointName:                 {"UnknownAuxiliaryPointName", CodeInvalidGoalConstraints},
	KindAuxiliaryPointNotAllowed:                  {"AuxiliaryPointNotAllowed", CodeInvalidGoalConstraints},
	KindInvalidCirclePath:                         {"InvalidCirclePath", CodeInvalidGoalConstraints},
	KindNoIKSolution:                              {"NoIKSolution", CodeNoIKSolution},
	KindPlanningFailed:                            {"PlanningFailed", CodePlanningFailed},
	KindSamplingTimeMismatch:                      {"SamplingTimeMismatch", CodeInvalidMotionPlan},
	KindTrajectoryMismatch:                        {"TrajectoryMismatch", CodeFailure},
	KindBlendInvalid:                              {"BlendInvalid", CodeInvalidMotionPlan},
	KindBlendNoIntersection:                       {"BlendNoIntersection", CodeInvalidMotionPlan},
}

func (k ErrorKind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Code returns the result code associated with the kind.
func (k ErrorKind) Code() ErrorCode {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return CodeFailure
}

// GenerationError is the error returned by every failing operation of the pipeline.
type GenerationError struct {
	Kind  ErrorKind
	msg   string
	cause error
}

func newError(kind ErrorKind, format string, args ...interface{}) *GenerationError {
	return &GenerationError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...interface{}) *GenerationError {
	return &GenerationError{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *GenerationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap returns the underlying cause, if any.
func (e *GenerationError) Unwrap() error {
	return e.cause
}

// Code returns the result code for the error.
func (e *GenerationError) Code() ErrorCode {
	return e.Kind.Code()
}

// KindOf extracts the failure kind from err. A nil error yields KindUnknown, as does any error
// that did not originate in this package.
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindUnknown
}

// CodeOf maps err to a result code: nil is success, foreign errors are a generic failure.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Code()
	}
	return CodeFailure
}
