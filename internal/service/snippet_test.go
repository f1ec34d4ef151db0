package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/codehut/snippethub/internal/apperror"
	"github.com/codehut/snippethub/internal/model"
	"github.com/codehut/snippethub/internal/repository"
)

// fakeSnippetRepo is an in-memory repository.SnippetRepository. List records
// the scope and options it was called with so tests can verify what the
// service composed.
type fakeSnippetRepo struct {
	snippets  map[string]*model.Snippet
	favorites map[string]map[string]bool // snippetID -> set of userIDs
	nextID    int

	lastScope  repository.ListScope
	lastFilter repository.SnippetFilter
	lastOpts   repository.ListOptions
	listCalled bool
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{
		snippets:  make(map[string]*model.Snippet),
		favorites: make(map[string]map[string]bool),
	}
}

func (f *fakeSnippetRepo) Create(ctx context.Context, snippet *model.Snippet) error {
	f.nextID++
	snippet.ID = fmt.Sprintf("snip-%d", f.nextID)
	copied := *snippet
	f.snippets[snippet.ID] = &copied
	return nil
}

func (f *fakeSnippetRepo) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	copied := *s
	copied.FavoritesCount = len(f.favorites[id])
	return &copied, nil
}

func (f *fakeSnippetRepo) Update(ctx context.Context, snippet *model.Snippet) error {
	if _, ok := f.snippets[snippet.ID]; !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	copied := *snippet
	f.snippets[snippet.ID] = &copied
	return nil
}

func (f *fakeSnippetRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	delete(f.favorites, id)
	return nil
}

func (f *fakeSnippetRepo) List(ctx context.Context, scope repository.ListScope, filter repository.SnippetFilter, opts repository.ListOptions) (*repository.Page, error) {
	f.listCalled = true
	f.lastScope = scope
	f.lastFilter = filter
	f.lastOpts = opts
	return &repository.Page{Items: []model.Snippet{}, HasMore: false}, nil
}

func (f *fakeSnippetRepo) ToggleFavorite(ctx context.Context, snippetID, userID string) (bool, int, error) {
	if _, ok := f.snippets[snippetID]; !ok {
		return false, 0, apperror.NotFound("snippet", snippetID)
	}
	set := f.favorites[snippetID]
	if set == nil {
		set = make(map[string]bool)
		f.favorites[snippetID] = set
	}
	if set[userID] {
		delete(set, userID)
		return false, len(set), nil
	}
	set[userID] = true
	return true, len(set), nil
}

func (f *fakeSnippetRepo) FavoriteCount(ctx context.Context, snippetID string) (int, error) {
	if _, ok := f.snippets[snippetID]; !ok {
		return 0, apperror.NotFound("snippet", snippetID)
	}
	return len(f.favorites[snippetID]), nil
}

func newTestSnippetService(snippets *fakeSnippetRepo, users *fakeUserRepo) *SnippetService {
	return NewSnippetService(snippets, users, testLogger())
}

func boolPtr(b bool) *bool { return &b }

func validSnippetInput() SnippetInput {
	return SnippetInput{
		Title:    "Quick Sort",
		Language: "go",
		Code:     "func quicksort() {}",
		IsPublic: boolPtr(true),
	}
}

func testUser(id, username string) *model.User {
	return &model.User{ID: id, Username: username}
}

func TestCreateSnippet(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")

	in := validSnippetInput()
	in.Tags = []string{" Sorting ", "GO", "sorting"}

	snippet, err := svc.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if snippet.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want %q", snippet.OwnerID, "user-1")
	}
	if len(snippet.Tags) != 2 || snippet.Tags[0] != "sorting" || snippet.Tags[1] != "go" {
		t.Errorf("Tags = %v, want [sorting go]", snippet.Tags)
	}
}

func TestCreateSnippet_Validation(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*SnippetInput)
		wantField string
	}{
		{"missing title", func(in *SnippetInput) { in.Title = "" }, "title"},
		{"blank title", func(in *SnippetInput) { in.Title = "   " }, "title"},
		{"title too short", func(in *SnippetInput) { in.Title = "a" }, "title"},
		{"title too long", func(in *SnippetInput) { in.Title = strings.Repeat("x", 101) }, "title"},
		{"missing language", func(in *SnippetInput) { in.Language = "" }, "language"},
		{"missing code", func(in *SnippetInput) { in.Code = "" }, "code"},
		{"blank code", func(in *SnippetInput) { in.Code = "  \n  " }, "code"},
		{"description too long", func(in *SnippetInput) { in.Description = strings.Repeat("x", 1001) }, "description"},
		{"isPublic omitted", func(in *SnippetInput) { in.IsPublic = nil }, "isPublic"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeSnippetRepo()
			svc := newTestSnippetService(repo, newFakeUserRepo())

			in := validSnippetInput()
			tc.mutate(&in)

			_, err := svc.Create(context.Background(), testUser("user-1", "alice"), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}

			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tc.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tc.wantField)
			}
			if len(repo.snippets) != 0 {
				t.Error("rejected create should not store anything")
			}
		})
	}
}

func TestGetSnippetByID_Visibility(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	other := testUser("user-2", "bob")
	ctx := context.Background()

	in := validSnippetInput()
	in.IsPublic = boolPtr(false)
	private, err := svc.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	public, err := svc.Create(ctx, owner, validSnippetInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Owner sees both.
	if _, err := svc.GetByID(ctx, owner, private.ID); err != nil {
		t.Errorf("owner reading private snippet: %v", err)
	}
	// Non-owner sees the public one.
	if _, err := svc.GetByID(ctx, other, public.ID); err != nil {
		t.Errorf("non-owner reading public snippet: %v", err)
	}
	// Non-owner is forbidden from the private one, not told it's missing.
	if _, err := svc.GetByID(ctx, other, private.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-owner reading private snippet: error = %v, want ErrForbidden", err)
	}
	// Missing ID is NotFound.
	if _, err := svc.GetByID(ctx, owner, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing snippet: error = %v, want ErrNotFound", err)
	}
}

func TestGetPublicSnippetByID(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	ctx := context.Background()

	in := validSnippetInput()
	in.IsPublic = boolPtr(false)
	private, err := svc.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	public, err := svc.Create(ctx, owner, validSnippetInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.GetPublicByID(ctx, public.ID); err != nil {
		t.Errorf("GetPublicByID(public) error = %v", err)
	}

	// Private and missing records are indistinguishable on this path.
	privateErr := func() error { _, err := svc.GetPublicByID(ctx, private.ID); return err }()
	missingErr := func() error { _, err := svc.GetPublicByID(ctx, "missing"); return err }()
	if !errors.Is(privateErr, apperror.ErrNotFound) {
		t.Errorf("GetPublicByID(private) error = %v, want ErrNotFound", privateErr)
	}
	if !errors.Is(missingErr, apperror.ErrNotFound) {
		t.Errorf("GetPublicByID(missing) error = %v, want ErrNotFound", missingErr)
	}
}

func TestUpdateSnippet_FullReplace(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	ctx := context.Background()

	in := validSnippetInput()
	in.Description = "original description"
	in.Tags = []string{"old"}
	created, err := svc.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The update omits description and tags; both are replaced, not merged.
	updated, err := svc.Update(ctx, owner, created.ID, SnippetInput{
		Title:    "Merge Sort",
		Language: "rust",
		Code:     "fn mergesort() {}",
		IsPublic: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Title != "Merge Sort" || updated.Language != "rust" {
		t.Errorf("got (%q, %q), want (Merge Sort, rust)", updated.Title, updated.Language)
	}
	if updated.Description != "" {
		t.Errorf("Description = %q, want empty after full replace", updated.Description)
	}
	if len(updated.Tags) != 0 {
		t.Errorf("Tags = %v, want empty after full replace", updated.Tags)
	}
	if updated.IsPublic {
		t.Error("IsPublic should be false after update")
	}
}

func TestUpdateSnippet_Authorization(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	other := testUser("user-2", "bob")
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, validSnippetInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Update(ctx, other, created.ID, validSnippetInput())
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update() by non-owner: error = %v, want ErrForbidden", err)
	}

	_, err = svc.Update(ctx, owner, "missing", validSnippetInput())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() missing snippet: error = %v, want ErrNotFound", err)
	}

	// Invalid input on an unowned snippet still reports Forbidden: the
	// ownership check runs first.
	_, err = svc.Update(ctx, other, created.ID, SnippetInput{})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update() non-owner with bad input: error = %v, want ErrForbidden", err)
	}
}

func TestUpdateSnippet_RejectedUpdateLeavesRecordIntact(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, validSnippetInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Update(ctx, owner, created.ID, SnippetInput{Title: "x"}); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}

	found, err := svc.GetByID(ctx, owner, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Title != "Quick Sort" {
		t.Errorf("Title = %q, want unchanged %q", found.Title, "Quick Sort")
	}
}

func TestDeleteSnippetService(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	other := testUser("user-2", "bob")
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, validSnippetInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, other, created.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete() by non-owner: error = %v, want ErrForbidden", err)
	}

	if err := svc.Delete(ctx, owner, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := svc.Delete(ctx, owner, created.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete(): error = %v, want ErrNotFound", err)
	}
}

func TestListByOwner_ScopeComposition(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	caller := testUser("user-1", "alice")
	ctx := context.Background()

	// Listing your own snippets includes private ones.
	if _, err := svc.ListByOwner(ctx, caller, "user-1", repository.SnippetFilter{}, repository.ListOptions{}); err != nil {
		t.Fatalf("ListByOwner(self) error = %v", err)
	}
	if repo.lastScope.PublicOnly {
		t.Error("listing own snippets should not be PublicOnly")
	}
	if repo.lastScope.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want %q", repo.lastScope.OwnerID, "user-1")
	}

	// Listing someone else's is restricted to public.
	if _, err := svc.ListByOwner(ctx, caller, "user-2", repository.SnippetFilter{}, repository.ListOptions{}); err != nil {
		t.Fatalf("ListByOwner(other) error = %v", err)
	}
	if !repo.lastScope.PublicOnly {
		t.Error("listing another user's snippets must be PublicOnly")
	}
	if repo.lastScope.OwnerID != "user-2" {
		t.Errorf("OwnerID = %q, want %q", repo.lastScope.OwnerID, "user-2")
	}
}

func TestListPublic_AlwaysExcludesCaller(t *testing.T) {
	repo := newFakeSnippetRepo()
	users := newFakeUserRepo()
	svc := newTestSnippetService(repo, users)
	caller := testUser("user-1", "alice")
	ctx := context.Background()

	if _, err := svc.ListPublic(ctx, caller, "", repository.SnippetFilter{}, repository.ListOptions{}); err != nil {
		t.Fatalf("ListPublic() error = %v", err)
	}
	if !repo.lastScope.PublicOnly {
		t.Error("public listing must be PublicOnly")
	}
	if repo.lastScope.ExcludeOwnerID != "user-1" {
		t.Errorf("ExcludeOwnerID = %q, want caller's ID", repo.lastScope.ExcludeOwnerID)
	}
}

func TestListPublic_ByUsername(t *testing.T) {
	repo := newFakeSnippetRepo()
	users := newFakeUserRepo()
	svc := newTestSnippetService(repo, users)
	ctx := context.Background()

	bob := &model.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}
	if err := users.CreateUser(ctx, bob); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	caller := testUser("user-99", "alice")
	if _, err := svc.ListPublic(ctx, caller, "BOB", repository.SnippetFilter{}, repository.ListOptions{}); err != nil {
		t.Fatalf("ListPublic() error = %v", err)
	}
	if repo.lastScope.OwnerID != bob.ID {
		t.Errorf("OwnerID = %q, want %q (resolved case-insensitively)", repo.lastScope.OwnerID, bob.ID)
	}
	if repo.lastScope.ExcludeOwnerID != "user-99" {
		t.Error("username restriction must not drop the caller exclusion")
	}
}

func TestListPublic_UnknownUsernameYieldsEmptyPage(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	caller := testUser("user-1", "alice")

	page, err := svc.ListPublic(context.Background(), caller, "ghost", repository.SnippetFilter{}, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListPublic() error = %v, want empty page", err)
	}
	if len(page.Items) != 0 || page.HasMore {
		t.Errorf("page = %+v, want empty with HasMore=false", page)
	}
	if repo.listCalled {
		t.Error("repository List should not be called for an unknown username")
	}
}

func TestListFavorites_Scope(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	caller := testUser("user-1", "alice")

	if _, err := svc.ListFavorites(context.Background(), caller, repository.SnippetFilter{}, repository.ListOptions{}); err != nil {
		t.Fatalf("ListFavorites() error = %v", err)
	}
	if repo.lastScope.FavoritedBy != "user-1" {
		t.Errorf("FavoritedBy = %q, want caller's ID", repo.lastScope.FavoritedBy)
	}
}

func TestList_NormalizesOptions(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	caller := testUser("user-1", "alice")

	if _, err := svc.ListFavorites(context.Background(), caller, repository.SnippetFilter{}, repository.ListOptions{Page: -3, Limit: 0}); err != nil {
		t.Fatalf("ListFavorites() error = %v", err)
	}
	if repo.lastOpts.Page != repository.DefaultPage || repo.lastOpts.Limit != repository.DefaultLimit {
		t.Errorf("opts = %+v, want defaults applied", repo.lastOpts)
	}
}

func TestToggleFavoriteService(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	fan := testUser("user-2", "bob")
	ctx := context.Background()

	in := validSnippetInput()
	in.IsPublic = boolPtr(false)
	created, err := svc.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A private snippet can still be favorited by a non-owner.
	favorited, count, err := svc.ToggleFavorite(ctx, fan, created.ID)
	if err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}
	if !favorited || count != 1 {
		t.Errorf("toggle = (%v, %d), want (true, 1)", favorited, count)
	}

	favorited, count, err = svc.ToggleFavorite(ctx, fan, created.ID)
	if err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}
	if favorited || count != 0 {
		t.Errorf("second toggle = (%v, %d), want (false, 0)", favorited, count)
	}

	if _, _, err := svc.ToggleFavorite(ctx, fan, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleFavorite(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFavoriteCountService(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo, newFakeUserRepo())
	owner := testUser("user-1", "alice")
	fan := testUser("user-2", "bob")
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, validSnippetInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, _, err := svc.ToggleFavorite(ctx, fan, created.ID); err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}

	count, err := svc.FavoriteCount(ctx, created.ID)
	if err != nil {
		t.Fatalf("FavoriteCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if _, err := svc.FavoriteCount(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FavoriteCount(missing) error = %v, want ErrNotFound", err)
	}
}
