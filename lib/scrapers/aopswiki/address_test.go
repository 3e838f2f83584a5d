package aopswiki

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressKey(t *testing.T) {
	require.Equal(t, "2002/index", YearIndexAddress(2002).Key())
	require.Equal(t, "2002/AMC_10A/problems", ProblemIndexAddress(2002, "AMC_10A").Key())
	require.Equal(t, "2002/AMC_10A/answer_key", AnswerKeyAddress(2002, "AMC_10A").Key())
	require.Equal(t, "2002/AMC_10A/problem_7", ProblemAddress(2002, "AMC_10A", 7).Key())
}

func TestTemplatesPath(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		templates := DefaultTemplates()
		require.Equal(t, "/2002_Mathematics_Competitions",
			templates.Path(YearIndexAddress(2002)))
		require.Equal(t, "/2002_AMC_10A_Problems",
			templates.Path(ProblemIndexAddress(2002, "AMC_10A")))
		require.Equal(t, "/2002_AMC_10A_Answer_Key",
			templates.Path(AnswerKeyAddress(2002, "AMC_10A")))
		require.Equal(t, "/2002_AMC_10A_Problems/Problem_7",
			templates.Path(ProblemAddress(2002, "AMC_10A", 7)))
	})

	t.Run("partial override keeps other defaults", func(t *testing.T) {
		templates := Templates{
			Problem: "/contest/{year}/{competition}/{problem}",
		}.withDefaults()

		require.Equal(t, "/contest/2002/AMC_10A/7",
			templates.Path(ProblemAddress(2002, "AMC_10A", 7)))
		require.Equal(t, DefaultTemplates().BaseUrl, templates.BaseUrl)
		require.Equal(t, "/2002_AMC_10A_Answer_Key",
			templates.Path(AnswerKeyAddress(2002, "AMC_10A")))
	})
}
