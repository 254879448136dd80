package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/git-state-api/internal/git"
	"github.com/rancher/git-state-api/internal/gittest"
	"github.com/rancher/git-state-api/internal/orchestrator"
	"github.com/rancher/git-state-api/internal/repolock"
	"github.com/rancher/git-state-api/internal/repostate"
)

const (
	testFile1  = "testfile1.txt"
	testBranch = "testBranch"
)

var errSpawn = errors.New("exec: \"git\": executable file not found in $PATH")

type failingExecutor struct {
	calls int
}

func (f *failingExecutor) Run(_ context.Context, _ string, args ...string) (git.Result, error) {
	f.calls++
	return git.Result{Args: args}, &git.GitError{Args: args, Err: errSpawn}
}

func newOrchestrator(cfg orchestrator.Config) *orchestrator.Orchestrator {
	exec := &git.ShellExecutor{UserName: "Test User", UserEmail: "test@example.com"}
	return orchestrator.New(cfg, exec, repolock.New(""), nil)
}

func readFile(repo, file string) string {
	data, err := os.ReadFile(filepath.Join(repo, file))
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx  context.Context
		orch *orchestrator.Orchestrator
		repo string
	)

	BeforeEach(func() {
		ctx = context.Background()
		orch = newOrchestrator(orchestrator.Config{CarryLocalChanges: true, InitialBranch: "master"})
		repo = gittest.NewRepo(GinkgoT())
	})

	status := func() repostate.Snapshot {
		out, err := orch.Status(ctx, repo)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Failed()).To(BeFalse(), out.Message)
		Expect(out.Status).NotTo(BeNil())
		return *out.Status
	}

	Describe("Status", func() {
		It("reports an empty, clean snapshot for a repository without history", func() {
			snap := status()
			Expect(snap.InMerge).To(BeFalse())
			Expect(snap.InRebase).To(BeFalse())
			Expect(snap.Files).To(BeEmpty())
		})

		It("reports only non-conflict entries when nothing is in progress", func() {
			gittest.Commit(GinkgoT(), repo, testFile1, "one\n", "Commit 1")
			gittest.WriteFile(GinkgoT(), repo, testFile1, "two\n")
			gittest.WriteFile(GinkgoT(), repo, "new.txt", "new\n")

			snap := status()
			Expect(snap.InMerge).To(BeFalse())
			Expect(snap.InRebase).To(BeFalse())
			Expect(snap.Files).To(HaveLen(2))
			Expect(snap.HasConflicts()).To(BeFalse())
			Expect(snap.Files["new.txt"].IsNew).To(BeTrue())
		})

		It("returns a generic failure for a directory that is not a repository", func() {
			out, err := orch.Status(ctx, GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
		})

		It("refuses a subdirectory of the work tree", func() {
			sub := filepath.Join(repo, "sub")
			Expect(os.MkdirAll(sub, 0o755)).To(Succeed())

			out, err := orch.Status(ctx, sub)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
			Expect(out.Message).To(ContainSubstring("not the top level"))
		})

		It("rejects an empty repository path before running git", func() {
			_, err := orch.Status(ctx, " ")
			Expect(errors.Is(err, orchestrator.ErrInvalidRequest)).To(BeTrue())
		})
	})

	Describe("Rebase", func() {
		BeforeEach(func() {
			gittest.DivergedBranches(GinkgoT(), repo, testFile1, testBranch)
		})

		It("stops on a conflicting patch and resumes once the file is resolved", func() {
			out, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorMergeFailed))

			snap := status()
			Expect(snap.InRebase).To(BeTrue())
			Expect(snap.InMerge).To(BeFalse())
			Expect(snap.Conflicts()).To(Equal([]string{testFile1}))
			Expect(snap.Files[testFile1].Staged).To(BeFalse())

			gittest.WriteFile(GinkgoT(), repo, testFile1, "resolved\n")
			out, err = orch.ResolveConflicts(ctx, repo, []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.InRebase).To(BeTrue())
			Expect(out.Status.HasConflicts()).To(BeFalse())

			out, err = orch.RebaseContinue(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)

			snap = status()
			Expect(snap.InRebase).To(BeFalse())
			Expect(snap.Files).To(BeEmpty())
			Expect(readFile(repo, testFile1)).To(Equal("resolved\n"))
			Expect(gittest.CurrentBranch(GinkgoT(), repo)).To(Equal(testBranch))
		})

		It("stops again when the next patch in the series also conflicts", func() {
			gittest.Run(GinkgoT(), repo, "checkout", "master")
			gittest.Commit(GinkgoT(), repo, "b.txt", "master b\n", "Commit 2")
			gittest.Run(GinkgoT(), repo, "checkout", testBranch)
			gittest.Commit(GinkgoT(), repo, "b.txt", "branch b\n", "Commit 2")

			out, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorMergeFailed))
			Expect(status().Conflicts()).To(Equal([]string{testFile1}))

			gittest.WriteFile(GinkgoT(), repo, testFile1, "resolved\n")
			out, err = orch.ResolveConflicts(ctx, repo, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)

			out, err = orch.RebaseContinue(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorMergeFailed))

			snap := status()
			Expect(snap.InRebase).To(BeTrue())
			Expect(snap.InMerge).To(BeFalse())
			Expect(snap.Conflicts()).To(Equal([]string{"b.txt"}))
			Expect(readFile(repo, testFile1)).To(Equal("resolved\n"))
		})

		It("refuses to continue while conflicts remain", func() {
			out, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorMergeFailed))

			out, err = orch.RebaseContinue(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorUnresolvedConflict))
			Expect(out.Message).To(ContainSubstring(testFile1))
		})

		It("refuses to continue when a resolved file still carries conflict markers", func() {
			_, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			out, err := orch.ResolveConflicts(ctx, repo, []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)

			out, err = orch.RebaseContinue(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorUnresolvedConflict))
			Expect(status().InRebase).To(BeTrue())
		})

		It("refuses operations incompatible with the rebase in progress", func() {
			_, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			for _, attempt := range []func() (orchestrator.Outcome, error){
				func() (orchestrator.Outcome, error) { return orch.Merge(ctx, repo, "master") },
				func() (orchestrator.Outcome, error) { return orch.Rebase(ctx, repo, "master") },
				func() (orchestrator.Outcome, error) { return orch.Checkout(ctx, repo, "master") },
				func() (orchestrator.Outcome, error) { return orch.Commit(ctx, repo, "msg", nil) },
				func() (orchestrator.Outcome, error) { return orch.AbortMerge(ctx, repo) },
			} {
				out, err := attempt()
				Expect(err).NotTo(HaveOccurred())
				Expect(out.ErrorCode).To(Equal(orchestrator.ErrorAlreadyInProgress))
			}
			Expect(status().InRebase).To(BeTrue())
		})

		It("aborts back to the original branch tip", func() {
			_, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			out, err := orch.AbortRebase(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.InRebase).To(BeFalse())
			Expect(out.Status.Files).To(BeEmpty())
			Expect(readFile(repo, testFile1)).To(Equal("branch change\n"))
			Expect(gittest.CurrentBranch(GinkgoT(), repo)).To(Equal(testBranch))
		})

		It("reports a generic failure when no rebase is in progress", func() {
			out, err := orch.RebaseContinue(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
		})

		It("fast-forwards without conflicts", func() {
			gittest.Run(GinkgoT(), repo, "checkout", "master")
			gittest.Run(GinkgoT(), repo, "branch", "behind", "master~1")
			gittest.Run(GinkgoT(), repo, "checkout", "behind")

			out, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(readFile(repo, testFile1)).To(Equal("master change\n"))
		})
	})

	Describe("Merge", func() {
		BeforeEach(func() {
			gittest.DivergedBranches(GinkgoT(), repo, testFile1, testBranch)
		})

		It("leaves a conflicting merge in progress with its pending message", func() {
			out, err := orch.Merge(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorConflict))

			snap := status()
			Expect(snap.InMerge).To(BeTrue())
			Expect(snap.InRebase).To(BeFalse())
			Expect(snap.CommitMessage).To(ContainSubstring("Merge branch 'master'"))
			Expect(snap.Files[testFile1].Conflict).To(BeTrue())
			Expect(snap.Files[testFile1].Staged).To(BeFalse())
		})

		It("concludes the merge with a commit once conflicts are resolved", func() {
			_, err := orch.Merge(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			out, err := orch.Commit(ctx, repo, "", []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorUnresolvedConflict))

			out, err = orch.ResolveConflicts(ctx, repo, []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)

			out, err = orch.Commit(ctx, repo, "", []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorUnresolvedConflict))

			gittest.WriteFile(GinkgoT(), repo, testFile1, "merged\n")
			out, err = orch.Commit(ctx, repo, "", []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.InMerge).To(BeFalse())
			Expect(out.Status.Files).To(BeEmpty())

			subject := gittest.Run(GinkgoT(), repo, "log", "-1", "--format=%s")
			Expect(subject).To(ContainSubstring("Merge branch 'master'"))
		})

		It("treats a repeated resolve as a no-op", func() {
			_, err := orch.Merge(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			gittest.WriteFile(GinkgoT(), repo, testFile1, "merged\n")

			first, err := orch.ResolveConflicts(ctx, repo, []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Failed()).To(BeFalse(), first.Message)

			second, err := orch.ResolveConflicts(ctx, repo, []string{testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Failed()).To(BeFalse(), second.Message)
			Expect(*second.Status).To(Equal(*first.Status))
		})

		It("refuses operations incompatible with the merge in progress", func() {
			_, err := orch.Merge(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			for _, attempt := range []func() (orchestrator.Outcome, error){
				func() (orchestrator.Outcome, error) { return orch.Merge(ctx, repo, "master") },
				func() (orchestrator.Outcome, error) { return orch.Rebase(ctx, repo, "master") },
				func() (orchestrator.Outcome, error) { return orch.Checkout(ctx, repo, "master") },
				func() (orchestrator.Outcome, error) { return orch.RebaseContinue(ctx, repo) },
				func() (orchestrator.Outcome, error) { return orch.AbortRebase(ctx, repo) },
			} {
				out, err := attempt()
				Expect(err).NotTo(HaveOccurred())
				Expect(out.ErrorCode).To(Equal(orchestrator.ErrorAlreadyInProgress))
			}
			Expect(status().InMerge).To(BeTrue())
		})

		It("never runs a mutating command for a refused operation", func() {
			_, err := orch.Merge(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			rec := git.NewRecorder(&git.ShellExecutor{})
			orch = orchestrator.New(orchestrator.Config{CarryLocalChanges: true}, rec, nil, nil)

			out, err := orch.Rebase(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorAlreadyInProgress))
			Expect(rec.Commands()).To(ConsistOf("rev-parse", "status"))
		})

		It("aborts the merge through the state-dispatching abort", func() {
			_, err := orch.Merge(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())

			out, err := orch.Abort(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.InMerge).To(BeFalse())
			Expect(out.Status.Files).To(BeEmpty())
			Expect(readFile(repo, testFile1)).To(Equal("branch change\n"))
		})

		It("merges cleanly when the histories do not collide", func() {
			gittest.Run(GinkgoT(), repo, "checkout", "master")
			gittest.Run(GinkgoT(), repo, "checkout", "-b", "side")
			gittest.Commit(GinkgoT(), repo, "side.txt", "side\n", "Commit 2")
			gittest.Run(GinkgoT(), repo, "checkout", "master")

			out, err := orch.Merge(ctx, repo, "side")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.InMerge).To(BeFalse())
			Expect(out.Status.Files).To(BeEmpty())
			Expect(readFile(repo, "side.txt")).To(Equal("side\n"))
		})
	})

	Describe("Checkout", func() {
		BeforeEach(func() {
			gittest.DivergedBranches(GinkgoT(), repo, testFile1, testBranch)
		})

		It("switches branches when the work tree is clean", func() {
			out, err := orch.Checkout(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(gittest.CurrentBranch(GinkgoT(), repo)).To(Equal("master"))
		})

		It("carries colliding local edits across and reports them as conflicts", func() {
			gittest.WriteFile(GinkgoT(), repo, testFile1, "local edit\n")

			out, err := orch.Checkout(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorConflict))

			snap := status()
			Expect(snap.InRebase).To(BeFalse())
			Expect(snap.InMerge).To(BeFalse())
			Expect(snap.Files[testFile1].Conflict).To(BeTrue())
			Expect(gittest.Run(GinkgoT(), repo, "stash", "list")).To(BeEmpty())
		})

		It("stashes, switches and re-applies the local edits in that order", func() {
			rec := git.NewRecorder(&git.ShellExecutor{UserName: "Test User", UserEmail: "test@example.com"})
			orch = orchestrator.New(orchestrator.Config{CarryLocalChanges: true}, rec, nil, nil)
			gittest.WriteFile(GinkgoT(), repo, testFile1, "local edit\n")

			out, err := orch.Checkout(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorConflict))

			var mutations []string
			for _, call := range rec.Calls() {
				switch call.Command() {
				case "checkout", "stash":
					mutations = append(mutations, strings.Join(call.Args[:2], " "))
				}
			}
			Expect(mutations).To(Equal([]string{"checkout master", "stash push", "checkout master", "stash pop", "stash drop"}))
			Expect(gittest.CurrentBranch(GinkgoT(), repo)).To(Equal("master"))
		})

		It("refuses atomically when carrying local edits is disabled", func() {
			orch = newOrchestrator(orchestrator.Config{})
			gittest.WriteFile(GinkgoT(), repo, testFile1, "local edit\n")

			out, err := orch.Checkout(ctx, repo, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorConflict))

			snap := status()
			Expect(snap.InRebase).To(BeFalse())
			Expect(snap.HasConflicts()).To(BeFalse())
			Expect(readFile(repo, testFile1)).To(Equal("local edit\n"))
			Expect(gittest.CurrentBranch(GinkgoT(), repo)).To(Equal(testBranch))
		})

		It("reports an unknown revision as a generic failure", func() {
			out, err := orch.Checkout(ctx, repo, "no-such-branch")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
		})

		It("never treats a revision as a pathspec that discards local edits", func() {
			gittest.WriteFile(GinkgoT(), repo, testFile1, "precious local edit\n")

			out, err := orch.Checkout(ctx, repo, testFile1)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
			Expect(readFile(repo, testFile1)).To(Equal("precious local edit\n"))
			Expect(gittest.CurrentBranch(GinkgoT(), repo)).To(Equal(testBranch))
		})

		It("rejects option-like revisions", func() {
			_, err := orch.Checkout(ctx, repo, "--orphan")
			Expect(errors.Is(err, orchestrator.ErrInvalidRequest)).To(BeTrue())
		})
	})

	Describe("Init, Commit and branches", func() {
		It("creates a repository on the configured initial branch", func() {
			orch = newOrchestrator(orchestrator.Config{InitialBranch: "trunk"})
			dir := GinkgoT().TempDir()

			out, err := orch.Init(ctx, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.Files).To(BeEmpty())

			head := gittest.Run(GinkgoT(), dir, "symbolic-ref", "HEAD")
			Expect(strings.TrimSpace(head)).To(Equal("refs/heads/trunk"))

			gittest.WriteFile(GinkgoT(), dir, "a.txt", "a\n")
			out, err = orch.Commit(ctx, dir, "first", []string{"a.txt"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)

			out, err = orch.ListBranches(ctx, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Branches).To(Equal([]repostate.Branch{{Name: "trunk", Current: true}}))
		})

		It("commits only the listed files", func() {
			gittest.Commit(GinkgoT(), repo, testFile1, "one\n", "Commit 1")
			gittest.WriteFile(GinkgoT(), repo, testFile1, "two\n")
			gittest.WriteFile(GinkgoT(), repo, "later.txt", "later\n")

			out, err := orch.Commit(ctx, repo, "Commit 2", []string{"./" + testFile1, testFile1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.Files).To(HaveLen(1))
			Expect(out.Status.Files["later.txt"].IsNew).To(BeTrue())
		})

		It("reports an empty commit as a generic failure", func() {
			gittest.Commit(GinkgoT(), repo, testFile1, "one\n", "Commit 1")

			out, err := orch.Commit(ctx, repo, "nothing", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
		})

		It("requires a message outside of a merge", func() {
			gittest.WriteFile(GinkgoT(), repo, testFile1, "one\n")

			out, err := orch.Commit(ctx, repo, "  ", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))
		})

		It("rejects file paths outside the repository", func() {
			_, err := orch.Commit(ctx, repo, "msg", []string{"../escape.txt"})
			Expect(errors.Is(err, orchestrator.ErrInvalidRequest)).To(BeTrue())
		})

		It("creates branches without switching to them", func() {
			gittest.Commit(GinkgoT(), repo, testFile1, "one\n", "Commit 1")

			out, err := orch.CreateBranch(ctx, repo, "refs/heads/feature", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)

			out, err = orch.CreateBranch(ctx, repo, "feature", "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ErrorCode).To(Equal(orchestrator.ErrorGenericFailure))

			out, err = orch.ListBranches(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Branches).To(ConsistOf(
				repostate.Branch{Name: "feature"},
				repostate.Branch{Name: "master", Current: true},
			))
		})

		It("treats abort on a clean repository as a no-op", func() {
			out, err := orch.Abort(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Failed()).To(BeFalse(), out.Message)
			Expect(out.Status.InMerge).To(BeFalse())
		})
	})

	Describe("infrastructure failures", func() {
		It("propagates executor errors instead of mapping them to an error code", func() {
			exec := &failingExecutor{}
			orch = orchestrator.New(orchestrator.Config{}, exec, nil, nil)

			out, err := orch.Merge(ctx, repo, "master")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, errSpawn)).To(BeTrue())
			Expect(out.Failed()).To(BeFalse())
			Expect(exec.calls).To(Equal(1))
		})

		It("gives up waiting for a repository lock held elsewhere", func() {
			locks := repolock.New("")
			release, err := locks.Lock(ctx, repo)
			Expect(err).NotTo(HaveOccurred())
			defer release()

			exec := &git.ShellExecutor{}
			orch = orchestrator.New(orchestrator.Config{LockTimeout: 20 * time.Millisecond}, exec, locks, nil)

			_, err = orch.Status(ctx, repo)
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})
})

var _ = Describe("Allowed", func() {
	DescribeTable("guards operations by in-progress state",
		func(state orchestrator.State, op orchestrator.Operation, allowed bool) {
			Expect(orchestrator.Allowed(state, op)).To(Equal(allowed))
		},
		Entry("merge while clean", orchestrator.StateClean, orchestrator.OpMerge, true),
		Entry("commit while merging", orchestrator.StateMerging, orchestrator.OpCommit, true),
		Entry("resolve while merging", orchestrator.StateMerging, orchestrator.OpResolveConflicts, true),
		Entry("checkout while merging", orchestrator.StateMerging, orchestrator.OpCheckout, false),
		Entry("continue while merging", orchestrator.StateMerging, orchestrator.OpRebaseContinue, false),
		Entry("commit while rebasing", orchestrator.StateRebasing, orchestrator.OpCommit, false),
		Entry("continue while rebasing", orchestrator.StateRebasing, orchestrator.OpRebaseContinue, true),
		Entry("branch create while rebasing", orchestrator.StateRebasing, orchestrator.OpCreateBranch, true),
	)

	It("lets a rebase marker win over a merge marker", func() {
		Expect(orchestrator.StateOf(repostate.Snapshot{InMerge: true, InRebase: true})).To(Equal(orchestrator.StateRebasing))
		Expect(orchestrator.StateOf(repostate.Snapshot{InMerge: true})).To(Equal(orchestrator.StateMerging))
		Expect(orchestrator.StateOf(repostate.Snapshot{})).To(Equal(orchestrator.StateClean))
	})
})
