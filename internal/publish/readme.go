package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/pagepub/internal/forge"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
)

const mitLicenseTemplate = `MIT License

Copyright (c) %d %s

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`

func (p *Pipeline) mitLicense() string {
	return fmt.Sprintf(mitLicenseTemplate, p.now().Year(), p.opts.Owner)
}

// seedRepository adds a LICENSE and a starter README to a freshly created
// collection. Both writes are best-effort: a concurrent publisher may have
// seeded them already, and neither file is load-bearing for the publish.
func (p *Pipeline) seedRepository(ctx context.Context, task Task) {
	license := p.mitLicense()
	if err := p.forge.CreateFile(ctx, p.opts.Owner, task.Name, "LICENSE", p.opts.Branch, "Add MIT License", []byte(license)); err != nil {
		if !errors.Is(err, forge.ErrAlreadyExists) {
			p.logger.Warn("could not seed LICENSE", logfields.Task(task.Name), logfields.Error(err))
		}
	}

	readme := fmt.Sprintf("# %s\n\nGenerated application for %s\n", task.Name, task.Name)
	if err := p.forge.CreateFile(ctx, p.opts.Owner, task.Name, "README.md", p.opts.Branch, "Add README", []byte(readme)); err != nil {
		if !errors.Is(err, forge.ErrAlreadyExists) {
			p.logger.Warn("could not seed README", logfields.Task(task.Name), logfields.Error(err))
		}
	}
}

// UpdateReadme replaces the collection's README with freshly generated
// content, typically after a successful publish. Failures are logged and
// swallowed: the README is documentation, not part of the published artifact.
func (p *Pipeline) UpdateReadme(ctx context.Context, name, content string) {
	if content == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	existing, err := p.forge.GetFile(ctx, p.opts.Owner, name, "README.md", p.opts.Branch)
	switch {
	case err == nil:
		err = p.forge.UpdateFile(ctx, p.opts.Owner, name, "README.md", p.opts.Branch, "Update README", existing.SHA, []byte(content))
	case errors.Is(err, forge.ErrNotFound):
		err = p.forge.CreateFile(ctx, p.opts.Owner, name, "README.md", p.opts.Branch, "Add README", []byte(content))
	}
	if err != nil {
		p.logger.Warn("could not update README", logfields.Task(name), logfields.Error(err))
	}
}
