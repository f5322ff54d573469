package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/model"
	"spartan-crm/internal/repository"
	"spartan-crm/internal/twenty"
)

type fakeCompanies struct {
	mu   sync.Mutex
	next uint
	rows map[uint]model.Company
}

func newFakeCompanies(companies ...model.Company) *fakeCompanies {
	f := &fakeCompanies{rows: map[uint]model.Company{}}
	for _, c := range companies {
		if c.ID > f.next {
			f.next = c.ID
		}
		f.rows[c.ID] = c
	}
	return f
}

func (f *fakeCompanies) List(context.Context) ([]model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Company, 0, len(f.rows))
	for i := uint(1); i <= f.next; i++ {
		if c, ok := f.rows[i]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCompanies) Get(_ context.Context, id uint) (*model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCompanies) NameTaken(_ context.Context, name string, excludeID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.rows {
		if id != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCompanies) Create(_ context.Context, c *model.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	c.ID = f.next
	f.rows[c.ID] = *c
	return nil
}

func (f *fakeCompanies) Update(_ context.Context, c *model.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[c.ID]; !ok {
		return repository.ErrNotFound
	}
	f.rows[c.ID] = *c
	return nil
}

func (f *fakeCompanies) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeUsers struct {
	mu        sync.Mutex
	next      uint
	rows      map[uint]model.User
	lastLogin map[uint]time.Time
}

func newFakeUsers(users ...model.User) *fakeUsers {
	f := &fakeUsers{rows: map[uint]model.User{}, lastLogin: map[uint]time.Time{}}
	for _, u := range users {
		if u.ID > f.next {
			f.next = u.ID
		}
		f.rows[u.ID] = u
	}
	return f
}

func (f *fakeUsers) List(_ context.Context, companyID uint) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for i := uint(1); i <= f.next; i++ {
		if u, ok := f.rows[i]; ok && (companyID == 0 || u.CompanyID == companyID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Get(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) EmailTaken(_ context.Context, email string, excludeID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.rows {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	u.ID = f.next
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin[id] = at
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeMobileUsers struct {
	mu   sync.Mutex
	next uint
	rows map[uint]model.MobileUser
}

func newFakeMobileUsers() *fakeMobileUsers {
	return &fakeMobileUsers{rows: map[uint]model.MobileUser{}}
}

func (f *fakeMobileUsers) List(_ context.Context, companyID uint) ([]model.MobileUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.MobileUser
	for i := uint(1); i <= f.next; i++ {
		if u, ok := f.rows[i]; ok && (companyID == 0 || u.CompanyID == companyID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeMobileUsers) Get(_ context.Context, id uint) (*model.MobileUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeMobileUsers) FindByIdentity(_ context.Context, username, email string, excludeID uint) (*model.MobileUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.rows {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMobileUsers) FindByLabel(_ context.Context, companyID uint, column, label string, excludeID uint) (*model.MobileUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.rows {
		if id == excludeID || u.CompanyID != companyID {
			continue
		}
		value := u.SalesRep
		if column == repository.LabelCanvasser {
			value = u.Canvasser
		}
		if value != "" && strings.EqualFold(value, label) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMobileUsers) Create(_ context.Context, u *model.MobileUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	u.ID = f.next
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeMobileUsers) Update(_ context.Context, u *model.MobileUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeMobileUsers) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeLeads struct {
	mu   sync.Mutex
	next uint
	rows map[uint]model.LeadRecord
}

func newFakeLeads(leads ...model.LeadRecord) *fakeLeads {
	f := &fakeLeads{rows: map[uint]model.LeadRecord{}}
	for _, l := range leads {
		if l.ID > f.next {
			f.next = l.ID
		}
		f.rows[l.ID] = l
	}
	return f
}

func (f *fakeLeads) List(_ context.Context, companyID uint, q repository.LeadQuery) ([]model.LeadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LeadRecord
	for i := uint(1); i <= f.next; i++ {
		l, ok := f.rows[i]
		if !ok || l.CompanyID != companyID {
			continue
		}
		if q.Status != "" && l.Status != q.Status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeLeads) Get(_ context.Context, companyID, id uint) (*model.LeadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (f *fakeLeads) Create(_ context.Context, l *model.LeadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	l.ID = f.next
	l.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.rows[l.ID] = *l
	return nil
}

func (f *fakeLeads) Update(_ context.Context, l *model.LeadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[l.ID] = *l
	return nil
}

func (f *fakeLeads) Delete(_ context.Context, companyID, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.CompanyID != companyID {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// fakeRemote is a scripted remote CRM. It also satisfies syncer.Remote.
type fakeRemote struct {
	mu        sync.Mutex
	leads     []domain.Lead
	listCalls int
	patches   []domain.LeadPatch
	patchErr  error
	uploads   []string
	upserts   []domain.Lead
	cfg       twenty.Config
}

func (f *fakeRemote) ListLeads(_ context.Context, filter *twenty.LeadFilter) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []domain.Lead
	for _, l := range f.leads {
		if filter != nil && filter.SalesRep != "" && !strings.EqualFold(l.SalesRep, filter.SalesRep) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRemote) CreateLead(_ context.Context, l domain.Lead) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = fmt.Sprintf("remote-%d", len(f.leads)+1)
	f.leads = append(f.leads, l)
	f.upserts = append(f.upserts, l)
	return &l, nil
}

func (f *fakeRemote) UpdateLead(_ context.Context, l domain.Lead) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.leads {
		if f.leads[i].ID == l.ID {
			f.leads[i] = l
			f.upserts = append(f.upserts, l)
			return &l, nil
		}
	}
	return nil, twenty.ErrNotFound
}

func (f *fakeRemote) PatchLead(_ context.Context, id string, p domain.LeadPatch, current domain.Lead) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, p)
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	p.Apply(&current)
	return &current, nil
}

func (f *fakeRemote) DeleteLead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.leads {
		if f.leads[i].ID == id {
			f.leads = append(f.leads[:i], f.leads[i+1:]...)
			return nil
		}
	}
	return twenty.ErrNotFound
}

func (f *fakeRemote) GetNotesForLead(_ context.Context, leadID string) ([]twenty.Note, error) {
	return []twenty.Note{{ID: "note-1", Title: "Inspection", Body: "hail damage on " + leadID}}, nil
}

func (f *fakeRemote) CreateNoteForLead(_ context.Context, leadID, title, body string) (*twenty.Note, error) {
	return &twenty.Note{ID: "note-2", Title: title, Body: body}, nil
}

func (f *fakeRemote) GetTasksForLead(context.Context, string) ([]twenty.Task, error) {
	return []twenty.Task{{ID: "task-1", Title: "Call back", Status: twenty.TaskTodo}}, nil
}

func (f *fakeRemote) CreateTask(_ context.Context, in twenty.TaskInput) (*twenty.Task, error) {
	status := in.Status
	if status == "" {
		status = twenty.TaskTodo
	}
	return &twenty.Task{ID: "task-2", Title: in.Title, Body: in.Body, Status: status, DueAt: in.DueAt}, nil
}

func (f *fakeRemote) UpdateTask(_ context.Context, id string, upd twenty.TaskUpdate) (*twenty.Task, error) {
	t := &twenty.Task{ID: id, Status: twenty.TaskTodo}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	return t, nil
}

func (f *fakeRemote) GetAttachmentsForLead(context.Context, string) ([]twenty.Attachment, error) {
	return []twenty.Attachment{{ID: "att-1", Name: "roof.jpg"}}, nil
}

func (f *fakeRemote) UploadAttachment(_ context.Context, leadID, fileName, contentType string, content []byte) (*twenty.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, fileName+":"+string(content))
	return &twenty.Attachment{ID: "att-2", Name: fileName, Type: contentType}, nil
}

func (f *fakeRemote) factory() RemoteFactory {
	return func(cfg twenty.Config, _ *zap.Logger) RemoteCRM {
		f.mu.Lock()
		f.cfg = cfg
		f.mu.Unlock()
		return f
	}
}
