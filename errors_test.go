package trajgen

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindCodes(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		code ErrorCode
	}{
		{KindVelocityScalingIncorrect, CodeInvalidMotionPlan},
		{KindUnknownPlanningGroup, CodeInvalidGroupName},
		{KindNonZeroVelocityInStartState, CodeInvalidRobotState},
		{KindJointsOfGoalOutOfRange, CodeInvalidGoalConstraints},
		{KindNoIKSolverAvailable, CodeNoIKSolution},
		{KindInvalidCirclePath, CodeInvalidGoalConstraints},
		{KindNoIKSolution, CodeNoIKSolution},
		{KindPlanningFailed, CodePlanningFailed},
		{KindTrajectoryMismatch, CodeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.Code())
			assert.Equal(t, tt.code, newError(tt.kind, "boom").Code())
		})
	}
}

func TestEveryKindHasAName(t *testing.T) {
	for kind := KindUnknown; kind <= KindBlendNoIntersection; kind++ {
		_, ok := kindInfo[kind]
		assert.True(t, ok, "kind %d has no entry", int(kind))
	}
	assert.Equal(t, "ErrorKind(1000)", ErrorKind(1000).String())
	assert.Equal(t, CodeFailure, ErrorKind(1000).Code())
}

func TestKindOfWrappedErrors(t *testing.T) {
	base := newError(KindNoIKSolution, "sample %d", 3)
	wrapped := fmt.Errorf("item 2 (LIN): %w", base)
	doubly := errors.Wrap(wrapped, "sequence")

	assert.Equal(t, KindNoIKSolution, KindOf(doubly))
	assert.Equal(t, CodeNoIKSolution, CodeOf(doubly))
	assert.Contains(t, doubly.Error(), "NoIKSolution: sample 3")

	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, CodeSuccess, CodeOf(nil))
	assert.Equal(t, CodeFailure, CodeOf(errors.New("foreign")))
}

func TestGenerationErrorUnwrap(t *testing.T) {
	cause := errors.New("joint x: velocity too high")
	err := wrapError(KindPlanningFailed, cause, "sample %d", 4)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "PlanningFailed: sample 4: joint x: velocity too high", err.Error())
	assert.Equal(t, "NO_IK_SOLUTION", CodeNoIKSolution.String())
	assert.Equal(t, "ErrorCode(7)", ErrorCode(7).String())
}
