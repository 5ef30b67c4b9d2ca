// Package collection — индекс сущностей: vistrail, их workflow, выполнения
// и превью, сгруппированные в workspace'ы.
//
// Collection держит лес domain.Entity в памяти и синхронизирует его
// с хранилищем при Commit:
//
//	c, err := collection.New(ctx, collection.Config{Store: repo.NewEntityRepo(pool)})
//	e, err := c.UpdateVistrail(ctx, collection.FileURL("demo.vt.json"), nil)
//	c.AddToWorkspace(e, "")
//	err = c.Commit(ctx)
//
// ID сущностей монотонны и не переиспользуются. Удаление рекурсивно и
// откладывается до Commit. UpdateVistrail пересоздаёт дерево vistrail,
// сохраняя его членство в workspace'ах.
//
// Писатель индекса один: процессы договариваются через WriterLock.
//
// Файлы:
//   - collection.go — Collection, сущности, workspace'ы, Commit
//   - entities.go — построение деревьев из vistrail и workflow
//   - store.go — Store, Snapshot/Changeset, MemoryStore
//   - loader.go — Loader и FileLoader для *.vt.json
//   - lock.go — WriterLock поверх gofrs/flock
package collection
