// Package scrapepool implements a dispatcher plus W workers exchanging
// typed messages over channels, each worker holding exclusive write
// access to exactly one article at a time.
package scrapepool

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"lotus/internal/extract"
	"lotus/internal/fetch"
	"lotus/internal/lotuserr"
	"lotus/internal/model"
	"lotus/internal/wiki"
)

// Config holds the pool's tunables.
type Config struct {
	Workers       int
	DownloadDelay time.Duration
}

type msgKind int

const (
	needWork msgKind = iota
	foundUser
	workerDone
)

// workerMsg is the Worker → Dispatcher direction of the protocol.
type workerMsg struct {
	kind     msgKind
	workerID int
	user     model.User
}

type dispatchKind int

const (
	assign dispatchKind = iota
	shutdown
)

// dispatchMsg is the Dispatcher → Worker direction. article is an
// exclusive mutable handle: the dispatcher never hands out the same
// article twice, so at most one worker ever holds it.
type dispatchMsg struct {
	kind    dispatchKind
	article *model.Article
}

// Run fills in page_id, tags and votes for every article, and returns the
// deduplicated user map. tagIndex maps a tag string to its position in
// the tag table; it is read-only for the pool's lifetime. A worker
// send/receive failure against a dead peer is a Message-kind error
// ("thread lost") and aborts the whole run.
func Run(ctx context.Context, log *slog.Logger, client *fetch.Client, tagIndex map[string]uint16, articles []*model.Article, cfg Config) (map[uint64]model.User, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	// Cancelling ctx unblocks every worker, so a fatal error can wait for
	// them without deadlocking.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan workerMsg, cfg.Workers*4)
	outbounds := make([]chan dispatchMsg, cfg.Workers)
	for i := range outbounds {
		outbounds[i] = make(chan dispatchMsg)
	}

	var wg sync.WaitGroup
	fatal := make(chan error, cfg.Workers)

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go runWorker(ctx, i, log, client, tagIndex, inbound, outbounds[i], &wg, fatal, cfg.DownloadDelay)
	}

	users := make(map[uint64]model.User)
	cursor := 0
	shutdownSent := make([]bool, cfg.Workers)
	doneCount := 0

	for doneCount < cfg.Workers {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, lotuserr.New(lotuserr.Message, "scrapepool.Run", ctx.Err())
		case err := <-fatal:
			cancel()
			wg.Wait()
			return nil, err
		case msg, ok := <-inbound:
			if !ok {
				wg.Wait()
				return nil, lotuserr.New(lotuserr.Message, "scrapepool.Run", nil)
			}
			switch msg.kind {
			case needWork:
				var next dispatchMsg
				if cursor < len(articles) {
					next = dispatchMsg{kind: assign, article: articles[cursor]}
					cursor++
				} else {
					if shutdownSent[msg.workerID] {
						continue
					}
					shutdownSent[msg.workerID] = true
					next = dispatchMsg{kind: shutdown}
				}
				if err := send(ctx, outbounds[msg.workerID], next); err != nil {
					wg.Wait()
					return nil, err
				}
			case foundUser:
				users[msg.user.UserID] = msg.user
			case workerDone:
				doneCount++
			}
		}
	}

	wg.Wait()
	// Drain any fatal error a worker reported after its last Done race
	// with pool shutdown.
	select {
	case err := <-fatal:
		return nil, err
	default:
	}
	log.Info("scrape pool finished", "articles", len(articles), "users", len(users))
	return users, nil
}

func send(ctx context.Context, ch chan<- dispatchMsg, msg dispatchMsg) error {
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return lotuserr.New(lotuserr.Message, "scrapepool.send", ctx.Err())
	}
}

func runWorker(ctx context.Context, id int, log *slog.Logger, client *fetch.Client, tagIndex map[string]uint16, inbound chan<- workerMsg, outbound <-chan dispatchMsg, wg *sync.WaitGroup, fatal chan<- error, downloadDelay time.Duration) {
	defer wg.Done()
	defer func() {
		select {
		case inbound <- workerMsg{kind: workerDone, workerID: id}:
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case inbound <- workerMsg{kind: needWork, workerID: id}:
		case <-ctx.Done():
			return
		}

		select {
		case msg := <-outbound:
			if msg.kind == shutdown {
				return
			}
			if err := scrapeArticle(ctx, log, client, tagIndex, msg.article, downloadDelay, func(u model.User) {
				select {
				case inbound <- workerMsg{kind: foundUser, user: u}:
				case <-ctx.Done():
				}
			}); err != nil {
				select {
				case fatal <- err:
				default:
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// scrapeArticle fills in one article's page_id, tags and votes. Within a
// single article, page_id discovery strictly precedes vote fetching, and
// tag-index assignment strictly precedes vote-list parsing.
func scrapeArticle(ctx context.Context, log *slog.Logger, client *fetch.Client, tagIndex map[string]uint16, article *model.Article, downloadDelay time.Duration, onUser func(model.User)) error {
	html, err := client.GetBody(ctx, wiki.WikiPrefix+article.URL)
	if err != nil {
		return err
	}
	time.Sleep(downloadDelay)

	pid, err := extract.PageID(html)
	if err != nil {
		return err
	}
	article.PageID = pid

	tagStrings, err := extract.PageTags(html)
	if err != nil {
		return err
	}
	tags := make([]uint16, 0, len(tagStrings))
	for _, t := range tagStrings {
		idx, ok := tagIndex[t]
		if !ok {
			return lotuserr.New(lotuserr.Parse, "scrapepool.scrapeArticle", errTagNotFound(t))
		}
		tags = append(tags, idx)
	}
	article.Tags = tags

	form := url.Values{}
	form.Set("pageId", strconv.FormatUint(pid, 10))
	form.Set("moduleName", wiki.ModuleName)
	form.Set("wikidot_token7", wiki.WikidotToken)

	voteBody, err := client.PostForm(ctx, wiki.WikiPrefix+wiki.AjaxModulePath, form, wiki.WikidotToken)
	if err != nil {
		return err
	}
	time.Sleep(downloadDelay)

	voters, err := extract.Voters(voteBody)
	if err != nil {
		return err
	}

	votes := make([]model.Vote, 0, len(voters))
	for _, v := range voters {
		votes = append(votes, model.Vote{Rating: v.Rating, UserID: v.User.UserID})
		onUser(v.User)
	}
	article.Votes = votes

	log.Debug("article scraped", "pid", pid, "tags", len(tags), "votes", len(votes))
	return nil
}

type errTagNotFound string

func (e errTagNotFound) Error() string { return "tag not in table: " + string(e) }
